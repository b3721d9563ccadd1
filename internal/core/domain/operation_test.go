package domain

import (
	"errors"
	"testing"
)

func TestNewOperationRecord(t *testing.T) {
	rec, err := NewOperationRecord(OpDropRows,
		map[string]string{"mode": "condition", "condition": "Price > 100"},
		OperationCounts{RowsAffected: 3})
	if err != nil {
		t.Fatalf("NewOperationRecord: %v", err)
	}

	if rec.ID == "" {
		t.Fatal("ID should be assigned")
	}
	if rec.Timestamp == 0 {
		t.Fatal("Timestamp should be assigned")
	}
	if rec.Counts.RowsAffected != 3 {
		t.Fatalf("RowsAffected = %d, want 3", rec.Counts.RowsAffected)
	}
}

func TestNewOperationRecord_RejectsUnknownKind(t *testing.T) {
	_, err := NewOperationRecord("explode", nil, OperationCounts{})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestNewOperationRecord_RejectsUnknownParam(t *testing.T) {
	_, err := NewOperationRecord(OpSort,
		map[string]string{"by": "Price", "lambda": "x*2"},
		OperationCounts{})
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestOperationRecord_Clone(t *testing.T) {
	rec, err := NewOperationRecord(OpRenameColumns,
		map[string]string{"mapping": "Company=Maker"}, OperationCounts{})
	if err != nil {
		t.Fatalf("NewOperationRecord: %v", err)
	}

	clone := rec.Clone()
	clone.Params["mapping"] = "changed"

	if rec.Params["mapping"] != "Company=Maker" {
		t.Fatal("Clone shares the params map")
	}
}

func TestDomainError_IsAndCode(t *testing.T) {
	err := ErrNothingToUndo.WithDetails("cursor at initial load")

	if !errors.Is(err, ErrNothingToUndo) {
		t.Fatal("errors.Is should match by code")
	}
	if errors.Is(err, ErrNothingToRedo) {
		t.Fatal("errors.Is matched a different code")
	}
	if got := GetErrorCode(err); got != "TB-HIST-4090" {
		t.Fatalf("GetErrorCode = %q, want TB-HIST-4090", got)
	}
	if !IsDomainError(err, "") {
		t.Fatal("IsDomainError with empty code should match any DomainError")
	}
}

func TestValidateNames(t *testing.T) {
	if err := ValidateSessionID(""); !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("empty session id: %v", err)
	}
	if err := ValidateSessionID("sess/1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("reserved char: %v", err)
	}
	if err := ValidateSessionID("session_123"); err != nil {
		t.Fatalf("valid session id: %v", err)
	}
	if err := ValidateTableName("current"); err != nil {
		t.Fatalf("valid table name: %v", err)
	}
}

package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInitLogFiles(t *testing.T) {
	infoOut, errorOut, debugOut := InfoLogger.Writer(), ErrorLogger.Writer(), DebugLogger.Writer()
	t.Cleanup(func() {
		InfoLogger.SetOutput(infoOut)
		ErrorLogger.SetOutput(errorOut)
		DebugLogger.SetOutput(debugOut)
	})

	dir := filepath.Join(t.TempDir(), "logs")
	if err := InitLogFiles(dir); err != nil {
		t.Fatalf("InitLogFiles() error = %v", err)
	}

	LogOperation("CreateReservation", time.Now(), nil)
	LogOperation("SubmitPayment", time.Now(), errors.New("boom"))

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(info), "Operation CreateReservation completed") {
		t.Errorf("info.log does not contain the completed operation: %q", info)
	}

	errorLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(errorLog), "Operation SubmitPayment failed") {
		t.Errorf("error.log does not contain the failed operation: %q", errorLog)
	}
	if !strings.Contains(string(errorLog), "logger.go:") {
		t.Errorf("error.log has no caller location: %q", errorLog)
	}
}

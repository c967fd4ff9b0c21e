package ifc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Faultbox/ifckit/pkg/step"
)

func loadModel(t *testing.T) *step.Tables {
	t.Helper()
	tables, err := step.ExtractFile(context.Background(), filepath.Join("testdata", "model.ifc"), step.Options{})
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	return tables
}

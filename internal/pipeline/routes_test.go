package pipeline

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTempDatafile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write datafile: %v", err)
	}
	return path
}

func TestLoadRoutes(t *testing.T) {
	path := writeTempDatafile(t, "ELEMENT_GLOBAL.2.100925\n  ELEMENT_GLOBAL.2.105212  \n\nELEMENT_GLOBAL.2.102212\n")

	routes, err := LoadRoutes(path)
	if err != nil {
		t.Fatalf("LoadRoutes failed: %v", err)
	}

	want := []string{
		"ELEMENT_GLOBAL.2.100925",
		"ELEMENT_GLOBAL.2.105212",
		"ELEMENT_GLOBAL.2.102212",
	}
	if !reflect.DeepEqual(routes, want) {
		t.Errorf("routes = %v, want %v", routes, want)
	}
}

func TestLoadRoutes_FirstColumnOnly(t *testing.T) {
	path := writeTempDatafile(t, "route-1,ignored,also ignored\nroute-2\n")

	routes, err := LoadRoutes(path)
	if err != nil {
		t.Fatalf("LoadRoutes failed: %v", err)
	}

	want := []string{"route-1", "route-2"}
	if !reflect.DeepEqual(routes, want) {
		t.Errorf("routes = %v, want %v", routes, want)
	}
}

func TestLoadRoutes_MissingFile(t *testing.T) {
	_, err := LoadRoutes(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("Expected error for missing datafile")
	}
}

package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		setupFunc func(t *testing.T, dir string)
		wantErr   bool
		errMsg    string
	}{
		{
			name: "successful init in empty directory",
			args: []string{"init", "acme-books"},
		},
		{
			name: "fails when already initialized",
			args: []string{"init", "acme-books"},
			setupFunc: func(t *testing.T, dir string) {
				if err := os.WriteFile(filepath.Join(dir, "keel.yml"), []byte("version: \"1.0\""), 0644); err != nil {
					t.Fatal(err)
				}
			},
			wantErr: true,
			errMsg:  "already initialized",
		},
		{
			name: "force flag allows reinitialization",
			args: []string{"init", "acme-books", "--force"},
			setupFunc: func(t *testing.T, dir string) {
				if err := os.WriteFile(filepath.Join(dir, "keel.yml"), []byte("old content"), 0644); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name:    "fails without a project name",
			args:    []string{"init"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupFunc != nil {
				tt.setupFunc(t, dir)
			}

			originalDir, err := os.Getwd()
			if err != nil {
				t.Fatal(err)
			}
			defer os.Chdir(originalDir)
			if err := os.Chdir(dir); err != nil {
				t.Fatal(err)
			}

			// Reset flag state between runs - cobra keeps flag values
			forceInit = false

			rootCmd.SetArgs(tt.args)
			err = rootCmd.Execute()

			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && tt.errMsg != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Execute() error = %v, should contain %v", err, tt.errMsg)
				}
			}

			if !tt.wantErr {
				content, err := os.ReadFile(filepath.Join(dir, "keel.yml"))
				if err != nil {
					t.Fatalf("keel.yml not created: %v", err)
				}
				if !strings.Contains(string(content), "acme-books") {
					t.Errorf("keel.yml should name the project, got:\n%s", content)
				}
				if _, err := os.Stat(filepath.Join(dir, "TRUTH_TEMPLATE.md")); err != nil {
					t.Errorf("truth template not created: %v", err)
				}
			}
		})
	}
}

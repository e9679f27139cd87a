package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const sampleHTML = `<table>
<tr><th>Scheme ID</th><th>Scheme Name</th><th>Daily Water Demand (Meter3)</th>
<th>OHT Water Supply (Meter3) Yesterday</th><th>Today Water Production (Meter3)</th><th>Last Data Receive Date</th></tr>
<tr><td>S1</td><td>Alpha</td><td>100</td><td>50</td><td>0</td><td>27-12-2025</td></tr>
<tr><td>S2</td><td>Beta</td><td>100</td><td>0</td><td>0</td><td>20-12-2025</td></tr>
<tr><td>S3</td><td>Gamma</td><td>0</td><td>n/a</td><td>80</td><td>27-12-2025</td></tr>
</table>`

// execute runs the CLI against a temp data dir and a config file that does not exist.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "config.toml"),
		"--data-dir", filepath.Join(dir, "data"),
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "jjmup.xls", sampleHTML)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, dir, "generate", input, "--threshold", "80", "--out-dir", outDir)
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Report written", "SUPPLIED WATER LESS THAN 80", "1 numeric cells", "zero daily water demand"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "ZERO & LESS THAN 80 SITES *.xlsx"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("report file not found: %v %v", matches, err)
	}
	f, err := excelize.OpenFile(matches[0])
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("SUPPLIED WATER LESS THAN 80")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// S1 and S2; S3 has zero demand and is excluded
	if len(rows) != 3 {
		t.Fatalf("deficit rows=%d, want 3", len(rows))
	}

	out, err = execute(t, dir, "runs")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "jjmup.xls") || !strings.Contains(out, "success") {
		t.Fatalf("runs output:\n%s", out)
	}
}

func TestGenerate_OutPath(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "jjmup.xls", sampleHTML)
	outPath := filepath.Join(dir, "report.xlsx")

	if out, err := execute(t, dir, "generate", input, "--out", outPath, "--zero-demand", "include"); err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}

func TestGenerate_Errors(t *testing.T) {
	dir := t.TempDir()
	missing := writeInput(t, dir, "missing.xls", strings.Replace(sampleHTML, "Daily Water Demand (Meter3)", "Capacity", 1))
	valid := writeInput(t, dir, "ok.xls", sampleHTML)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing column", []string{"generate", missing}, "Required columns not found"},
		{"bad threshold", []string{"generate", valid, "--threshold", "0"}, ""},
		{"bad policy", []string{"generate", valid, "--zero-demand", "drop"}, ""},
		{"no input", []string{"generate", filepath.Join(dir, "nope.xls")}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, dir, tc.args...)
			if err == nil {
				t.Fatalf("expected error, output:\n%s", out)
			}
			if tc.want != "" && !strings.Contains(out, tc.want) {
				t.Fatalf("output missing %q:\n%s", tc.want, out)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "jjmup.xls", sampleHTML)

	out, err := execute(t, dir, "resolve", input)
	if err != nil {
		t.Fatalf("resolve failed: %v\n%s", err, out)
	}
	for _, want := range []string{"DailyWaterDemand", "Daily Water Demand (Meter3)", "html, 3 rows"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRuns_Disabled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[data]\nrun_log = false\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err := execute(t, dir, "runs")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if !strings.Contains(out, "run log is disabled") {
		t.Fatalf("output:\n%s", out)
	}
}

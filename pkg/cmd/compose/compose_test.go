package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igolaizola/sonicarch/pkg/prompt"
)

func TestDryRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "song.csv")
	out := filepath.Join(dir, "prompt.txt")
	csv := "kind,duration,lyrics\nIntro,15,\nChorus,25,Rain on the window\n"
	if err := os.WriteFile(in, []byte(csv), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{
		Input:        in,
		Output:       out,
		DryRun:       true,
		ModelVersion: "v4",
	}
	if err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"=== SYSTEM ===",
		"Sonic Architect",
		"Target Model: Suno V4",
		"Block 2:",
		`- Lyrics Fragment: "Rain on the window..."`,
	} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("output missing %q:\n%s", want, b)
		}
	}
}

func TestRunFailureLeavesNoOutput(t *testing.T) {
	t.Setenv("SONICARCH_API_KEY", "")
	t.Setenv("API_KEY", "")
	dir := t.TempDir()
	out := filepath.Join(dir, "result.txt")

	// Rejected before anything runs.
	cfg := &Config{Topic: "rain", Format: "xml", Output: out}
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("Run(xml) err = nil; want error")
	}
	// Fails at compile time without an api key.
	cfg = &Config{Topic: "rain", Output: out, DBConn: filepath.Join(dir, "test.db")}
	err := Run(context.Background(), cfg)
	if !errors.Is(err, prompt.ErrMissingCredential) {
		t.Fatalf("Run() err = %v; want %v", err, prompt.ErrMissingCredential)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output file exists after failure: %v", err)
	}
}

func TestRequest(t *testing.T) {
	if _, err := request(&Config{}); err == nil {
		t.Fatal("request() err = nil; want error")
	}
	if _, err := request(&Config{Topic: "x", ModelVersion: "v9"}); err == nil {
		t.Fatal("request() err = nil; want error")
	}
	if _, err := request(&Config{Topic: "x", Format: "xml"}); err == nil {
		t.Fatal("request(xml) err = nil; want error")
	}
	r, err := request(&Config{Topic: "rain", Mood: "Sad", Instrumental: true})
	if err != nil {
		t.Fatal(err)
	}
	if r.Mode != prompt.Inspiration || r.Topic != "rain" || !r.Instrumental {
		t.Fatalf("request() = %+v", r)
	}
}

func TestPrint(t *testing.T) {
	res := &prompt.Result{Title: "雨夜", StylePrompt: "Pop, Piano, Pop", Lyrics: "[Verse 1: Sad Piano]", Explanation: "e"}

	var buf bytes.Buffer
	if err := Print(&buf, "text", res); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Style:\nPop, Piano, Pop") || strings.Contains(buf.String(), "Description") {
		t.Fatalf("Print(text) = %s", buf.String())
	}

	buf.Reset()
	if err := Print(&buf, "json", res); err != nil {
		t.Fatal(err)
	}
	var got prompt.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got != *res {
		t.Fatalf("Print(json) = %+v; want %+v", got, *res)
	}
	if err := Print(&buf, "xml", res); err == nil {
		t.Fatal("Print(xml) err = nil; want error")
	}
}

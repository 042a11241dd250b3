package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestReadTimestamps(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	input := strings.NewReader(`
# morning
2025-12-19 06:29
2025-12-19T07:15:00+02:00

2025-12-19T08:00
`)
	got, err := readTimestamps(input, loc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 timestamps, got %d", len(got))
	}
	if got[0].Location() != loc || got[0].Hour() != 6 || got[0].Minute() != 29 {
		t.Fatalf("unexpected first timestamp %v", got[0])
	}
	if _, offset := got[1].Zone(); offset != 2*3600 {
		t.Fatalf("expected explicit offset kept, got %d", offset)
	}
}

func TestReadTimestamps_Invalid(t *testing.T) {
	if _, err := readTimestamps(strings.NewReader("19/12/2025"), time.UTC); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuildService_DefaultRules(t *testing.T) {
	service, err := buildService(config{calendar: "none", extra: "2025-12-19"}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rules, err := service.Rules(context.Background())
	if err != nil || len(rules.Fees) != 3 {
		t.Fatalf("expected default rules, got %v %v", rules, err)
	}
}

func TestReadTimestamps_FractionalSeconds(t *testing.T) {
	got, err := readTimestamps(strings.NewReader("2025-12-19T06:29:00.5\n2025-12-19 06:31:00.25\n"), time.UTC)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Nanosecond() != 500000000 || got[1].Minute() != 31 {
		t.Fatalf("unexpected timestamps %v", got)
	}
}

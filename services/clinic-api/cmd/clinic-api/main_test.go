package main

import (
	"reflect"
	"testing"
)

func TestParseList(t *testing.T) {
	got := parseList(" https://app.example.com , ,https://admin.example.com")
	want := []string{"https://app.example.com", "https://admin.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseList = %v, want %v", got, want)
	}
	if parseList("") != nil {
		t.Fatal("empty input should yield nil")
	}
}

func TestIsTruthy(t *testing.T) {
	for _, raw := range []string{"1", "true", "TRUE", " yes ", "on"} {
		if !isTruthy(raw) {
			t.Errorf("isTruthy(%q) = false", raw)
		}
	}
	for _, raw := range []string{"", "0", "false", "off", "nope"} {
		if isTruthy(raw) {
			t.Errorf("isTruthy(%q) = true", raw)
		}
	}
}

func TestIntFromEnv(t *testing.T) {
	t.Setenv("CLINIC_TEST_INT", "42")
	if got := intFromEnv("CLINIC_TEST_INT", 7); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	t.Setenv("CLINIC_TEST_INT", "-3")
	if got := intFromEnv("CLINIC_TEST_INT", 7); got != 7 {
		t.Fatalf("negative value should fall back, got %d", got)
	}
	if got := intFromEnv("CLINIC_TEST_INT_UNSET", 7); got != 7 {
		t.Fatalf("unset should fall back, got %d", got)
	}
}

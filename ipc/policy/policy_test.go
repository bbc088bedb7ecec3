package policy_test

import (
	"testing"

	"github.com/aws-greengrass-lite/corebus/ipc/policy"
)

func TestValidateNameDeniesUnknownPID(t *testing.T) {
	s, err := policy.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ok, err := s.ValidateName(1234, "com.example.A")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected unregistered pid/name pair to be denied")
	}
}

func TestValidateNameAllowsAfterAllow(t *testing.T) {
	s, err := policy.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Allow(1234, "com.example.A"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.ValidateName(1234, "com.example.A")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected allowed pid/name pair to validate")
	}
}

func TestValidateNameDeniesDifferentName(t *testing.T) {
	s, err := policy.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Allow(1234, "com.example.A"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.ValidateName(1234, "com.example.B")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a different claimed name to be denied")
	}
}

func TestValidateNameCachesDenialThenHonorsLateAllow(t *testing.T) {
	s, err := policy.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if ok, _ := s.ValidateName(99, "com.example.C"); ok {
		t.Fatal("expected initial denial")
	}
	if err := s.Allow(99, "com.example.C"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.ValidateName(99, "com.example.C")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a later Allow to override a cached denial")
	}
}

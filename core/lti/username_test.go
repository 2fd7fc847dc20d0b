package lti

import (
	"strings"
	"testing"
)

func Test_deriveUsername(t *testing.T) {
	tests := []struct {
		name       string
		externalID string
		suffixLen  int
		wantPrefix string
	}{
		{name: "plain id", externalID: "student42", suffixLen: 4, wantPrefix: "student42_"},
		{name: "uppercased", externalID: "Student42", suffixLen: 4, wantPrefix: "student42_"},
		{name: "special chars stripped", externalID: "st.ud-ent@42", suffixLen: 4, wantPrefix: "student42_"},
		{name: "underscores kept", externalID: "stu_dent", suffixLen: 4, wantPrefix: "stu_dent_"},
		{name: "empty id falls back", externalID: "", suffixLen: 4, wantPrefix: "lti_"},
		{name: "all special falls back", externalID: "@#!$", suffixLen: 4, wantPrefix: "lti_"},
		{
			name:       "long id truncated",
			externalID: strings.Repeat("a", 100),
			suffixLen:  4,
			wantPrefix: strings.Repeat("a", usernamePrefixMaxLength) + "_",
		},
		{name: "no suffix", externalID: "student42", suffixLen: 0, wantPrefix: "student42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveUsername(tt.externalID, tt.suffixLen)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("deriveUsername() = %q, want prefix %q", got, tt.wantPrefix)
			}
			wantLen := len(tt.wantPrefix) + tt.suffixLen
			if len(got) != wantLen {
				t.Errorf("deriveUsername() len = %d, want %d", len(got), wantLen)
			}
			for _, c := range got[len(tt.wantPrefix):] {
				if !strings.ContainsRune(usernameSuffixCharset, c) {
					t.Errorf("deriveUsername() suffix char %q outside charset", c)
				}
			}
		})
	}
}

func Test_deriveUsername_randomized(t *testing.T) {
	// two derivations of the same id must differ (up to suffix collisions,
	// negligible at this length)
	a := deriveUsername("student", 8)
	b := deriveUsername("student", 8)
	if a == b {
		t.Errorf("deriveUsername() produced identical suffixes %q", a)
	}
}

package models

import "testing"

func TestDefaultProfilePreferences(t *testing.T) {
	prefs := DefaultProfilePreferences()

	if prefs.Major != "Undeclared" {
		t.Errorf("Major = %s, want Undeclared", prefs.Major)
	}
	if prefs.Year != "Student" {
		t.Errorf("Year = %s, want Student", prefs.Year)
	}
	if prefs.GPA != "N/A" {
		t.Errorf("GPA = %s, want N/A", prefs.GPA)
	}
}

package cmd

import "testing"

func TestCancelAction_RequiresRunID(t *testing.T) {
	c, _ := newReadOnlyContextWithArgs(t, nil, nil)
	if err := cancelAction("/tmp")(c); err == nil {
		t.Fatal("expected an error when no run-id is given")
	}
}

func TestResumeAction_RequiresRunID(t *testing.T) {
	c, _ := newReadOnlyContextWithArgs(t, map[string]string{"config": "does-not-matter.toml"}, nil)
	if err := resumeAction("/tmp")(c); err == nil {
		t.Fatal("expected an error when no run-id is given")
	}
}

func TestResumeAction_MissingConfigFile(t *testing.T) {
	c, _ := newReadOnlyContextWithArgs(t, map[string]string{"config": "/no/such/config.toml"}, []string{"run-1"})
	err := resumeAction("/tmp")(c)
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

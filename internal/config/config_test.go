package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q", c.ListenAddr)
	}
	if c.Lockout.MaxAttempts != 5 || c.Lockout.Cooldown != 15*time.Minute {
		t.Errorf("lockout = %+v", c.Lockout)
	}
	srvs := c.Servers()
	if len(srvs) != 3 || srvs[0].ID != "srv1" || srvs[2].ID != "srv3" {
		t.Fatalf("servers = %+v", srvs)
	}
	for _, s := range srvs {
		if s.Configured() {
			t.Errorf("%s should not be configured by default", s.ID)
		}
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
owners:
  - "999999999"
servers:
  srv1:
    domain: https://panel-one.example
    api_key: ptla_one
lockout:
  cooldown: 10m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PANELDASH_SERVERS_SRV2_DOMAIN", "https://panel-two.example")
	t.Setenv("PANELDASH_SERVERS_SRV2_API_KEY", "ptla_two")
	t.Setenv("PANELDASH_LISTEN_ADDR", ":8088")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ListenAddr != ":8088" {
		t.Errorf("ListenAddr = %q", c.ListenAddr)
	}
	if c.Lockout.Cooldown != 10*time.Minute {
		t.Errorf("Cooldown = %v", c.Lockout.Cooldown)
	}
	if !slices.Contains(c.Owners, "999999999") || slices.Contains(c.Owners, "100000001") {
		t.Errorf("owners = %v", c.Owners)
	}
	one, _ := c.Server("srv1")
	two, _ := c.Server("srv2")
	three, _ := c.Server("srv3")
	if !one.Configured() || !two.Configured() || three.Configured() {
		t.Errorf("configured = %v %v %v", one.Configured(), two.Configured(), three.Configured())
	}
	if one.ID != "srv1" || one.Name != "Server 1" {
		t.Errorf("srv1 = %+v", one)
	}
}

func TestOwnersFromEnvList(t *testing.T) {
	t.Setenv("PANELDASH_OWNERS", "999999999, 888888888")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Contains(c.Owners, "999999999") || !slices.Contains(c.Owners, "888888888") {
		t.Errorf("owners = %v", c.Owners)
	}
}

func TestValidateRejectsBadOwner(t *testing.T) {
	t.Setenv("PANELDASH_OWNERS", "admin")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric owner")
	}
}

func TestValidateRejectsUnknownServer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
servers:
  srv4:
    domain: https://panel-four.example
    api_key: ptla_four
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for server outside srv1..srv3")
	}
}

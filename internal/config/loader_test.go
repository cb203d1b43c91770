package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Goosie/NostrQuizAndVote/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given default configuration", t, func() {
		Convey("When loading with no file or env overrides", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then defaults should apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.LogLevel, ShouldEqual, "info")
				So(len(cfg.Relays), ShouldBeGreaterThan, 0)
				So(cfg.BasePoints, ShouldEqual, 100)
				So(cfg.TimeBonus, ShouldBeTrue)
				So(cfg.MaxTimeBonus, ShouldEqual, 50)
				So(cfg.DefaultTimePerQuestion, ShouldEqual, 30)
			})
		})
	})
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("QUIZ_ADDR", ":7070")
	t.Setenv("QUIZ_LOG_LEVEL", "debug")
	t.Setenv("QUIZ_BASE_POINTS", "250")

	Convey("Given QUIZ_ environment overrides", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then env values should win over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.LogLevel, ShouldEqual, "debug")
			So(cfg.BasePoints, ShouldEqual, 250)
		})
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quiz.yaml")
	content := []byte("addr: \":8181\"\nmax_time_bonus: 75\nrelays:\n  - wss://relay.example.org\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("QUIZ_CONFIG", path)

	Convey("Given a YAML config file", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then file values should override defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8181")
			So(cfg.MaxTimeBonus, ShouldEqual, 75)
			So(cfg.Relays, ShouldResemble, []string{"wss://relay.example.org"})
		})
	})
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("QUIZ_ADDR", "")

	Convey("Given an empty listen address", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then load should fail with ErrInvalidConfig", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "addr")
		})
	})
}

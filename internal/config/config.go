package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	ProviderGraph  = "graph"
	ProviderGoogle = "google"
)

type Application struct {
	Listen   string   `koanf:"listen"`
	Provider string   `koanf:"provider"`
	Auth     Auth     `koanf:"auth"`
	Graph    Graph    `koanf:"graph"`
	Google   Google   `koanf:"google"`
	Sync     Sync     `koanf:"sync"`
	Timezone Timezone `koanf:"timezone"`
	Database Database `koanf:"db"`
}

type Auth struct {
	TenantId     string   `koanf:"tenantid"`
	ClientId     string   `koanf:"clientid"`
	ClientSecret string   `koanf:"clientsecret"`
	Account      string   `koanf:"account"`
	Scopes       []string `koanf:"scopes"`
	// RedirectAddr is where the loopback server listens for the interactive sign-in callback.
	RedirectAddr       string        `koanf:"redirectaddr"`
	InteractiveTimeout time.Duration `koanf:"interactivetimeout"`
	// TokenCache is "memory" or "file".
	TokenCache string `koanf:"tokencache"`
	TokenDir   string `koanf:"tokendir"`
}

type Graph struct {
	BaseURL    string `koanf:"baseurl"`
	CalendarId string `koanf:"calendarid"`
}

type Google struct {
	ClientId     string   `koanf:"clientid"`
	ClientSecret string   `koanf:"clientsecret"`
	CalendarId   string   `koanf:"calendarid"`
	Endpoint     string   `koanf:"endpoint"`
	Scopes       []string `koanf:"scopes"`
}

type Sync struct {
	Interval time.Duration `koanf:"interval"`
	// Schedule is an optional cron spec that replaces Interval.
	Schedule      string `koanf:"schedule"`
	MonthsBack    int    `koanf:"monthsback"`
	MonthsForward int    `koanf:"monthsforward"`
	// Overlap is "skip" or "allow".
	Overlap string `koanf:"overlap"`
	// Reconcile is "replace" or "merge".
	Reconcile string        `koanf:"reconcile"`
	Grace     time.Duration `koanf:"grace"`
	AutoStart bool          `koanf:"autostart"`
}

type Timezone struct {
	// Local is the IANA zone outgoing event times are written in. Empty means $TZ, then UTC.
	Local string `koanf:"local"`
	// Naive is applied to remote timestamps that carry no zone information.
	Naive string `koanf:"naive"`
}

type Database struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	User    string `koanf:"user"`
	Pass    string `koanf:"pass"`
	Name    string `koanf:"name"`
	Schema  string `koanf:"schema"`
}

func Defaults() Application {
	return Application{
		Listen:   ":8181",
		Provider: ProviderGraph,
		Auth: Auth{
			Account:            "default",
			Scopes:             []string{"offline_access", "User.Read", "Calendars.ReadWrite", "Calendars.ReadWrite.Shared"},
			RedirectAddr:       "127.0.0.1:8400",
			InteractiveTimeout: 5 * time.Minute,
			TokenCache:         "memory",
		},
		Graph: Graph{
			BaseURL: "https://graph.microsoft.com/v1.0",
		},
		Google: Google{
			CalendarId: "primary",
			Scopes:     []string{"https://www.googleapis.com/auth/calendar"},
		},
		Sync: Sync{
			Interval:      5 * time.Second,
			MonthsBack:    1,
			MonthsForward: 1,
			Overlap:       "skip",
			Reconcile:     "replace",
			Grace:         15 * time.Second,
			AutoStart:     true,
		},
		Timezone: Timezone{
			Naive: "UTC",
		},
		Database: Database{
			Enabled: false,
			Host:    "localhost",
			Port:    5432,
			User:    "unical",
			Pass:    "",
			Name:    "unical",
			Schema:  "unical",
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "UNICAL_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "UNICAL_")), "_", ".")
			if k == "auth.scopes" {
				return k, strings.Fields(v)
			}
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}

// Locations resolves the configured zone names.
func (t Timezone) Locations() (local *time.Location, naive *time.Location, err error) {
	localName := t.Local
	if localName == "" {
		localName = os.Getenv("TZ")
	}
	if localName == "" {
		localName = "UTC"
	}
	local, err = time.LoadLocation(localName)
	if err != nil {
		return nil, nil, err
	}
	naiveName := t.Naive
	if naiveName == "" {
		naiveName = "UTC"
	}
	naive, err = time.LoadLocation(naiveName)
	if err != nil {
		return nil, nil, err
	}
	return local, naive, nil
}

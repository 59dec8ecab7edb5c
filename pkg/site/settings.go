package site

import (
	"net/url"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Settings is the copy shown on the pages.
type Settings struct {
	Title        string `mapstructure:"title"`
	Heading      string `mapstructure:"heading"`
	Greeting     string `mapstructure:"greeting"`
	Message      string `mapstructure:"message"`
	Note         string `mapstructure:"note"`
	ContactURL   string `mapstructure:"contact_url"`
	ContactLabel string `mapstructure:"contact_label"`
}

// DefaultSettings are used when no settings file is configured, and fill any
// field a file leaves out.
func DefaultSettings() Settings {
	return Settings{
		Title:    "Welcome to the Counter Page",
		Heading:  "Welcome to the Counter Page",
		Greeting: "Hi there, Visitor!",
		Message:  "Thanks for visiting! Click the button below to see the current visit count.",
	}
}

type SettingsService struct {
	viper    *viper.Viper
	logger   *logrus.Logger
	mux      *sync.RWMutex
	settings Settings
}

// NewSettingsService loads file and keeps watching it. With an empty file name
// the defaults are served and nothing is watched.
func NewSettingsService(file string, logger *logrus.Logger) (*SettingsService, error) {
	ss := &SettingsService{
		logger:   logger,
		mux:      &sync.RWMutex{},
		settings: DefaultSettings(),
	}
	if file == "" {
		return ss, nil
	}

	v := viper.New()
	v.SetConfigFile(file)
	err := v.ReadInConfig()
	if err != nil {
		return nil, errors.Wrap(err, "error reading in site settings file")
	}
	ss.viper = v

	err = ss.loadSettings()
	if err != nil {
		return nil, errors.Wrap(err, "error loading site settings")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.WithField("file", e.Name).Info("site settings file changed")
		if err := ss.loadSettings(); err != nil {
			logger.WithError(err).Error("keeping previous site settings")
		}
	})
	v.WatchConfig()

	return ss, nil
}

// Settings returns a copy of the active settings.
func (ss *SettingsService) Settings() Settings {
	ss.mux.RLock()
	defer ss.mux.RUnlock()

	return ss.settings
}

func (ss *SettingsService) loadSettings() error {
	settings := DefaultSettings()
	err := ss.viper.Unmarshal(&settings)
	if err != nil {
		return errors.Wrap(err, "error on site settings unmarshal")
	}

	err = validateSettings(settings)
	if err != nil {
		return errors.Wrap(err, "site settings file is invalid")
	}

	ss.mux.Lock()
	ss.settings = settings
	ss.mux.Unlock()

	return nil
}

func validateSettings(s Settings) error {
	if s.Title == "" {
		return errors.New("empty title")
	}

	if s.ContactURL != "" {
		u, err := url.Parse(s.ContactURL)
		if err != nil {
			return errors.Wrap(err, "invalid contact url")
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return errors.Errorf("contact url must be an absolute http(s) url (%s)", s.ContactURL)
		}
	}

	return nil
}

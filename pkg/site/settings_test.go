package site

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsService(t *testing.T) {
	testCases := []struct {
		desc    string
		file    string
		want    Settings
		wantErr bool
	}{
		{
			desc: "no file serves defaults",
			file: "",
			want: DefaultSettings(),
		},
		{
			desc: "file overrides defaults",
			file: "testdata/site.yaml",
			want: Settings{
				Title:        "Juned's Counter Page",
				Heading:      "Welcome to Juned's Counter Page",
				Greeting:     DefaultSettings().Greeting,
				Message:      DefaultSettings().Message,
				Note:         "This page is being load balanced to ensure it's always available (well, at least 99.9% of the time)!",
				ContactURL:   "https://www.linkedin.com/in/juned-connect",
				ContactLabel: "Here's my Linkedin",
			},
		},
		{
			desc:    "relative contact url",
			file:    "testdata/invalid_contact.yaml",
			wantErr: true,
		},
		{
			desc:    "empty title",
			file:    "testdata/empty_title.yaml",
			wantErr: true,
		},
		{
			desc:    "missing file",
			file:    "testdata/missing.yaml",
			wantErr: true,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			ss, err := NewSettingsService(tC.file, newNullLogger())

			if tC.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tC.want, ss.Settings())
		})
	}
}

func TestSettingsService_Reload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, ioutil.WriteFile(file, []byte("title: first\n"), 0644))

	ss, err := NewSettingsService(file, newNullLogger())
	require.NoError(t, err)
	assert.Equal(t, "first", ss.Settings().Title)

	require.NoError(t, ioutil.WriteFile(file, []byte("title: second\n"), 0644))
	assert.Eventually(t, func() bool {
		return ss.Settings().Title == "second"
	}, 5*time.Second, 50*time.Millisecond)

	// invalid content keeps the previous settings
	require.NoError(t, ioutil.WriteFile(file, []byte("title: \"\"\n"), 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, "second", ss.Settings().Title)
}

func newNullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

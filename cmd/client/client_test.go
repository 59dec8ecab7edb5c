package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSequence(t *testing.T) {
	testCases := []struct {
		desc    string
		counts  []int64
		wantErr string
	}{
		{desc: "empty", counts: nil},
		{desc: "unordered consecutive", counts: []int64{3, 1, 2}},
		{desc: "duplicate", counts: []int64{1, 2, 2}, wantErr: "duplicate count 2"},
		{desc: "gap", counts: []int64{1, 2, 4}, wantErr: "gap between 2 and 4"},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			err := checkSequence(tC.counts)
			if tC.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tC.wantErr)
			}
		})
	}
}

func TestMakeCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/count" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<p>This page has been visited 12 times.</p>")
	}))
	defer srv.Close()

	n, err := MakeCall(srv.Client(), srv.URL+"/count")
	assert.NoError(t, err)
	assert.Equal(t, int64(12), n)

	_, err = MakeCall(srv.Client(), srv.URL+"/other")
	assert.Error(t, err)
}

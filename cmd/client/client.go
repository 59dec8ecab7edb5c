package main

import (
	"flag"
	"io/ioutil"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var visitedRe = regexp.MustCompile(`This page has been visited (\d+) times\.`)

func main() {
	var (
		url         = flag.String("url", "http://localhost:5000/count", "count page url")
		requests    = flag.Int("requests", 100, "total number of requests")
		concurrency = flag.Int("concurrency", 10, "concurrent requests")
	)
	flag.Parse()

	logger := logrus.StandardLogger()
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 5 * time.Second

	jobs := make(chan struct{})
	var (
		wg     sync.WaitGroup
		mux    sync.Mutex
		counts []int64
		failed int
	)
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				n, err := MakeCall(client, *url)
				mux.Lock()
				if err != nil {
					logger.WithError(err).Warn("request failed")
					failed++
				} else {
					counts = append(counts, n)
				}
				mux.Unlock()
			}
		}()
	}

	start := time.Now()
	for i := 0; i < *requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()

	logger.Infof("%d requests, %d failed, took %s", *requests, failed, time.Since(start))

	if err := checkSequence(counts); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
	if len(counts) > 0 {
		logger.Infof("counts %d..%d, no duplicates or gaps", counts[0], counts[len(counts)-1])
	}
}

// MakeCall requests the count page once and returns the count it shows.
func MakeCall(client *http.Client, url string) (int64, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("unexpected status %s", resp.Status)
	}

	m := visitedRe.FindSubmatch(body)
	if m == nil {
		return 0, errors.New("no visit count in response")
	}
	return strconv.ParseInt(string(m[1]), 10, 64)
}

// checkSequence sorts counts and verifies they are consecutive. Other clients
// hitting the page at the same time show up as gaps.
func checkSequence(counts []int64) error {
	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
	for i := 1; i < len(counts); i++ {
		switch {
		case counts[i] == counts[i-1]:
			return errors.Errorf("duplicate count %d", counts[i])
		case counts[i] != counts[i-1]+1:
			return errors.Errorf("gap between %d and %d", counts[i-1], counts[i])
		}
	}
	return nil
}

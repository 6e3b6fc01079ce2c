package rss

import (
	"net/url"
	"strconv"
)

// DefaultCrawlers returns the site-specific pagination rules known out of
// the box: freie-radios.net and cba.media both page through results with
// an offset-style query parameter that grows by the page size each time.
func DefaultCrawlers() []Crawler {
	return []Crawler{frnCrawler{}, cbaCrawler{}}
}

func queryMap(u *url.URL) map[string]string {
	out := map[string]string{}
	for k, v := range u.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func setQueryMap(u *url.URL, params map[string]string) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
}

// insertOrAdd bumps params[key] by add, starting from def if the key is
// absent or not a number, mirroring how both site crawlers advance their
// pagination offset by the number of items just seen.
func insertOrAdd(params map[string]string, key string, def, add int) {
	current, ok := params[key]
	if !ok {
		params[key] = strconv.Itoa(def)
		return
	}
	n, err := strconv.Atoi(current)
	if err != nil {
		params[key] = strconv.Itoa(def)
		return
	}
	params[key] = strconv.Itoa(n + add)
}

type frnCrawler struct{}

func (frnCrawler) Domains() []string {
	return []string{"freie-radios.net", "www.freie-radios.net"}
}

func (frnCrawler) Next(page Page) (Next, error) {
	n := len(page.Results)
	if n == 0 {
		return Done(), nil
	}
	next := *page.URL
	params := queryMap(&next)
	insertOrAdd(params, "start", n, n)
	setQueryMap(&next, params)
	return GoTo(&next), nil
}

type cbaCrawler struct{}

func (cbaCrawler) Domains() []string {
	return []string{"cba.media", "cba.fro.at"}
}

func (cbaCrawler) Next(page Page) (Next, error) {
	n := len(page.Results)
	if n == 0 {
		return Done(), nil
	}
	next := *page.URL
	params := queryMap(&next)
	insertOrAdd(params, "offset", n, n)
	setQueryMap(&next, params)
	return GoTo(&next), nil
}

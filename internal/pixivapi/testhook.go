package pixivapi

// authHostOverride lets tests redirect the OAuth token exchange to a local
// httptest server without reaching the real upstream. Production code
// never sets this.
var authHostOverride string

func authHost() string {
	if authHostOverride != "" {
		return authHostOverride
	}
	return AuthHost
}

// SetAuthHostForTest redirects RefreshToken to url for the duration of a
// test. Callers should restore it with the returned func via t.Cleanup.
func SetAuthHostForTest(url string) (restore func()) {
	prev := authHostOverride
	authHostOverride = url
	return func() { authHostOverride = prev }
}

// apiHostOverride lets tests redirect the listing/image endpoints to a
// local httptest server. Production code never sets this.
var apiHostOverride string

func apiHost() string {
	if apiHostOverride != "" {
		return apiHostOverride
	}
	return APIHost
}

// SetAPIHostForTest redirects listing endpoints to url for the duration of
// a test. Callers should restore it with the returned func via t.Cleanup.
func SetAPIHostForTest(url string) (restore func()) {
	prev := apiHostOverride
	apiHostOverride = url
	return func() { apiHostOverride = prev }
}

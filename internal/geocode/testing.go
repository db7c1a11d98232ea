package geocode

// SetTestURL points a Mapbox client at a test server.
// This should only be used in tests.
func SetTestURL(m *Mapbox, baseURL string) {
	if baseURL != "" {
		m.baseURL = baseURL
	}
}

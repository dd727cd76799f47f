package application

import (
	"strings"
	"testing"

	"protection-gateway/protection/domain"
)

func cleanRequest() domain.RequestDescriptor {
	return domain.RequestDescriptor{
		Method:    "GET",
		Path:      "/api/projects",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		Host:      "example.com",
		Headers: map[string]string{
			"Accept":          "application/json",
			"Accept-Language": "en",
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64)",
		},
	}
}

func TestDetector_CleanRequestIsSafe(t *testing.T) {
	score := Detector{}.Inspect(cleanRequest())
	if !score.Safe {
		t.Fatalf("expected safe, indicators: %v", score.Indicators)
	}
}

func TestDetector_ScannerUserAgent(t *testing.T) {
	desc := cleanRequest()
	desc.UserAgent = "sqlmap/1.0"

	score := Detector{}.Inspect(desc)
	if score.Safe {
		t.Fatalf("expected unsafe for sqlmap user agent")
	}
	found := false
	for _, ind := range score.Indicators {
		if strings.HasPrefix(ind, "scanner_user_agent:") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected scanner indicator, got %v", score.Indicators)
	}
}

func TestDetector_PathTraversal(t *testing.T) {
	desc := cleanRequest()
	desc.Path = "/static/../../etc/passwd"

	score := Detector{}.Inspect(desc)
	if score.Safe {
		t.Fatalf("expected unsafe for traversal path")
	}
}

func TestDetector_SuspiciousExtension(t *testing.T) {
	desc := cleanRequest()
	desc.Path = "/wp-content/shell.php"

	if score := (Detector{}).Inspect(desc); score.Safe {
		t.Fatalf("expected unsafe for .php request")
	}
}

func TestDetector_OversizedQuery(t *testing.T) {
	desc := cleanRequest()
	desc.RawQuery = strings.Repeat("a", 3000)

	score := Detector{MaxQueryLength: 2048}.Inspect(desc)
	if score.Safe {
		t.Fatalf("expected unsafe for oversized query")
	}
}

func TestDetector_ExcessiveProxyHops(t *testing.T) {
	desc := cleanRequest()
	desc.ForwardedHops = 9

	if score := (Detector{MaxProxyHops: 5}).Inspect(desc); score.Safe {
		t.Fatalf("expected unsafe for 9 proxy hops")
	}
}

func TestDetector_DisallowedMethod(t *testing.T) {
	desc := cleanRequest()
	desc.Method = "TRACE"

	if score := (Detector{}).Inspect(desc); score.Safe {
		t.Fatalf("expected unsafe for TRACE")
	}
}

func TestDetector_CollectsAllIndicators(t *testing.T) {
	desc := cleanRequest()
	desc.UserAgent = "nikto"
	desc.Path = "/../.env"
	desc.Method = "TRACE"

	score := Detector{}.Inspect(desc)
	if score.Safe {
		t.Fatalf("expected unsafe")
	}
	if len(score.Indicators) < 3 {
		t.Fatalf("expected all triggered indicators reported, got %v", score.Indicators)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
)

// clinic-sim mints a development token and, with -book, books one
// appointment through the gateway.
func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8000"), "gateway base url")
		secret   = flag.String("secret", getenv("JWT_HMAC_SECRET", ""), "HS256 signing secret")
		subject  = flag.String("sub", getenv("SIM_USER", "staff-1"), "caller id")
		role     = flag.String("role", getenv("SIM_ROLE", "staff"), "caller role: owner, provider, staff or admin")
		ttl      = flag.Duration("ttl", time.Hour, "token lifetime")
		book     = flag.Bool("book", false, "book an appointment instead of printing the token")
		provider = flag.String("provider", "vet-1", "provider id")
		patient  = flag.String("patient", "pet-1", "patient id")
		service  = flag.String("service", "consult", "service id")
		start    = flag.String("start", "", "start time, RFC 3339 or YYYY-MM-DDTHH:MM")
		urgent   = flag.Bool("emergency", false, "flag the booking as an emergency")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("JWT_HMAC_SECRET is required")
	}
	now := time.Now().UTC()
	token, err := auth.SignHS256(auth.Claims{
		Role: *role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}
	if !*book {
		fmt.Println(token)
		return
	}

	if strings.TrimSpace(*start) == "" {
		fatal("-start is required with -book")
	}
	payload, err := json.Marshal(map[string]any{
		"provider_id":  *provider,
		"patient_id":   *patient,
		"service_id":   *service,
		"start_time":   *start,
		"is_emergency": *urgent,
	})
	if err != nil {
		fatal(err.Error())
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/appointments", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d\n%s\n", resp.StatusCode, body)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

// Package main runs end-to-end checks against a running lead API.
//
// Scenarios cover submission, validation, the estimate preview, admin auth,
// background enrichment and the CSV export. delete-all is destructive and only
// runs when E2E_ALLOW_DELETE=true.
//
// Usage:
//
//	ADMIN_JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go [scenario-name]
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	maxWaitSecs  = 60
	pollInterval = 2 * time.Second
)

var (
	apiBase    string
	adminToken string
	client     = &http.Client{Timeout: 15 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func generateJWT(secret string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "e2e",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func do(method, path string, body any, authed bool) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, apiBase+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, err
}

func submission(name string, daysOut int) map[string]any {
	return map[string]any{
		"name":  name,
		"email": "e2e@moveinfocentral.com",
		"phone": "5551234567",
		"currentAddress": map[string]string{
			"street": "12 Oak Ave", "city": "Austin", "state": "TX", "zipCode": "78701",
		},
		"destinationAddress": map[string]string{
			"street": "400 Pine St", "city": "Denver", "state": "CO", "zipCode": "80202",
		},
		"movingDate":                time.Now().AddDate(0, 0, daysOut).Format("2006-01-02"),
		"movingPreference":          "longDistance",
		"numberOfRooms":             "3",
		"approximateBoxesCount":     "20",
		"approximateFurnitureCount": "5",
		"category":                  "Residential",
		"agreedToTerms":             true,
	}
}

type submitResult struct {
	Success     bool              `json:"success"`
	LeadID      string            `json:"leadId"`
	FieldErrors map[string]string `json:"fieldErrors"`
	MinEstimate int               `json:"minEstimate"`
	MaxEstimate int               `json:"maxEstimate"`
}

type leadView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Urgency    string  `json:"urgency"`
	LeadScore  *int    `json:"leadScore"`
	Priority   *string `json:"priority"`
	EnrichedAt *string `json:"enrichedAt"`
}

func findLead(id string) (*leadView, error) {
	cursor := ""
	for {
		path := "/admin/leads"
		if cursor != "" {
			path += "?cursor=" + cursor
		}
		status, body, err := do(http.MethodGet, path, nil, true)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("list returned %d: %s", status, string(body))
		}
		var page struct {
			Leads      []leadView `json:"leads"`
			NextCursor string     `json:"nextCursor"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		for i := range page.Leads {
			if page.Leads[i].ID == id {
				return &page.Leads[i], nil
			}
		}
		if page.NextCursor == "" {
			return nil, fmt.Errorf("lead %s not listed", id)
		}
		cursor = page.NextCursor
	}
}

func waitForEnrichment(id string, maxSecs int) (*leadView, error) {
	deadline := time.Now().Add(time.Duration(maxSecs) * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		lead, err := findLead(id)
		if err != nil {
			continue
		}
		if lead.EnrichedAt != nil {
			return lead, nil
		}
	}
	return nil, fmt.Errorf("timed out waiting for enrichment after %ds", maxSecs)
}

func submit(t *T, name string, daysOut int) *submitResult {
	status, body, err := do(http.MethodPost, "/leads", submission(name, daysOut), false)
	if err != nil {
		t.fatalf("submit: %v", err)
		return nil
	}
	var res submitResult
	_ = json.Unmarshal(body, &res)
	t.check("submit returns 201", status == http.StatusCreated)
	t.check("submit returns a lead id", res.Success && res.LeadID != "")
	return &res
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioSubmit(t *T) {
	res := submit(t, "E2E Submit", 10)
	if res == nil {
		return
	}
	t.check("estimate is 900-1700", res.MinEstimate == 900 && res.MaxEstimate == 1700)
}

func scenarioValidation(t *T) {
	status, body, err := do(http.MethodPost, "/leads", map[string]any{"name": "J"}, false)
	if err != nil {
		t.fatalf("submit: %v", err)
		return
	}
	var res submitResult
	_ = json.Unmarshal(body, &res)
	t.check("invalid submission returns 400", status == http.StatusBadRequest)
	t.check("field errors name the bad fields", res.FieldErrors["name"] != "" && res.FieldErrors["email"] != "")
}

func scenarioPastDate(t *T) {
	status, body, err := do(http.MethodPost, "/leads", submission("E2E Past", -1), false)
	if err != nil {
		t.fatalf("submit: %v", err)
		return
	}
	var res submitResult
	_ = json.Unmarshal(body, &res)
	t.check("past moving date returns 400", status == http.StatusBadRequest)
	t.check("movingDate is flagged", res.FieldErrors["movingDate"] != "")
}

func scenarioEstimate(t *T) {
	status, body, err := do(http.MethodGet, "/estimate?numberOfRooms=3&approximateBoxesCount=20&approximateFurnitureCount=5", nil, false)
	if err != nil {
		t.fatalf("estimate: %v", err)
		return
	}
	var est struct {
		MinEstimate int `json:"minEstimate"`
		MaxEstimate int `json:"maxEstimate"`
	}
	_ = json.Unmarshal(body, &est)
	t.check("estimate returns 200", status == http.StatusOK)
	t.check("estimate matches submission", est.MinEstimate == 900 && est.MaxEstimate == 1700)
}

func scenarioAdminAuth(t *T) {
	status, _, err := do(http.MethodGet, "/admin/leads", nil, false)
	if err != nil {
		t.fatalf("list: %v", err)
		return
	}
	t.check("admin list without token returns 401", status == http.StatusUnauthorized)
}

func scenarioEnrichment(t *T) {
	res := submit(t, "E2E Enrichment", 5)
	if res == nil || res.LeadID == "" {
		return
	}
	lead, err := findLead(res.LeadID)
	if err != nil {
		t.fatalf("find lead: %v", err)
		return
	}
	t.check("urgency is Urgent for a move in 5 days", lead.Urgency == "Urgent")

	lead, err = waitForEnrichment(res.LeadID, maxWaitSecs)
	if err != nil {
		t.fatalf("%v", err)
		return
	}
	t.check("lead score in range", lead.LeadScore != nil && *lead.LeadScore >= 0 && *lead.LeadScore <= 100)
	t.check("priority set", lead.Priority != nil && *lead.Priority != "")
}

func scenarioExport(t *T) {
	status, body, err := do(http.MethodGet, "/admin/leads/export.csv", nil, true)
	if err != nil {
		t.fatalf("export: %v", err)
		return
	}
	t.check("export returns 200", status == http.StatusOK)
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil || len(records) == 0 {
		t.fatalf("parse csv: %v", err)
		return
	}
	t.check("export has a header row", len(records[0]) > 10 && records[0][0] == "Name")
}

func scenarioDeleteAll(t *T) {
	if os.Getenv("E2E_ALLOW_DELETE") != "true" {
		fmt.Println("    SKIP: set E2E_ALLOW_DELETE=true to run")
		return
	}
	status, body, err := do(http.MethodDelete, "/admin/leads", nil, true)
	if err != nil {
		t.fatalf("delete: %v", err)
		return
	}
	t.check("delete-all returns 200", status == http.StatusOK)
	t.check("response reports deleted count", strings.Contains(string(body), `"deleted"`))
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if apiBase == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL and ADMIN_JWT_SECRET required")
		os.Exit(1)
	}
	token, err := generateJWT(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: sign token: %v\n", err)
		os.Exit(1)
	}
	adminToken = token

	scenarios := []scenario{
		{"submit", scenarioSubmit},
		{"validation", scenarioValidation},
		{"past-date", scenarioPastDate},
		{"estimate", scenarioEstimate},
		{"admin-auth", scenarioAdminAuth},
		{"enrichment", scenarioEnrichment},
		{"export", scenarioExport},
		{"delete-all", scenarioDeleteAll},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	var results []string

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "ok"
		if t.failed > 0 {
			status = "FAILED"
		}
		results = append(results, fmt.Sprintf("  %-8s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range results {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		os.Exit(1)
	}
}

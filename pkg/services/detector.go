package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/sentra-security/sentra-engine/pkg/models"
)

// detection rule catalog for the simulated detector. Each rule names the
// data category it detects and the base risk it carries.
var simulatedRules = []struct {
	findingType string
	riskLevel   models.RiskLevel
	confidence  float64
}{
	{"PII - Email Addresses", models.RiskMedium, 92.5},
	{"PII - Phone Numbers", models.RiskMedium, 88.0},
	{"PII - National IDs", models.RiskHigh, 95.0},
	{"Credentials - API Keys", models.RiskHigh, 97.5},
	{"Credentials - Passwords", models.RiskHigh, 90.0},
	{"Financial - Card Numbers", models.RiskHigh, 94.0},
	{"Internal - Hostnames", models.RiskLow, 75.0},
	{"Internal - IP Addresses", models.RiskInformational, 70.0},
}

// locations the simulated detector reports per datasource type.
var simulatedLocations = map[string][]string{
	"postgres": {"public.users.email", "public.accounts.ssn", "public.audit_log.payload", "analytics.events.props"},
	"mysql":    {"app.customers.phone", "app.orders.billing", "app.sessions.token"},
	"s3":       {"exports/2024/customers.csv", "backups/db-dump.sql.gz", "logs/access/"},
	"gcs":      {"raw/ingest/events.ndjson", "ml/training/features.parquet"},
}

// SimulatedDetector produces a deterministic set of findings derived from
// the datasource identity. It stands in for a real detection engine so the
// scan pipeline, ingest path, and dashboard can run end to end without one.
type SimulatedDetector struct{}

// NewSimulatedDetector creates a detector that fabricates findings.
func NewSimulatedDetector() *SimulatedDetector {
	return &SimulatedDetector{}
}

// Detect returns findings for the datasource. The same datasource always
// yields the same rule subset and locations, so repeated scans upsert
// rather than accumulate; occurrence counts drift between runs the way a
// live store's would.
func (d *SimulatedDetector) Detect(ctx context.Context, ds *models.Datasource) ([]*models.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(ds.ID.String()))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	locations := simulatedLocations[ds.DatasourceType]
	if len(locations) == 0 {
		locations = []string{"default/objects", "default/records"}
	}

	now := time.Now().UTC()
	var findings []*models.Finding
	for i, rule := range simulatedRules {
		// Stable per-datasource subset: roughly half the rules fire.
		if rng.Intn(2) == 0 {
			continue
		}
		loc := locations[i%len(locations)]
		detected := now
		findings = append(findings, &models.Finding{
			ProjectID:    ds.ProjectID,
			FindingType:  rule.findingType,
			Location:     fmt.Sprintf("%s:%s", ds.Name, loc),
			RiskLevel:    rule.riskLevel,
			Confidence:   rule.confidence,
			Count:        1 + rand.Intn(5000),
			LastDetected: &detected,
			Status:       models.StatusActive,
			DataStore:    ds.Name,
		})
	}

	return findings, nil
}

var _ Detector = (*SimulatedDetector)(nil)

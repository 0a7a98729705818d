package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rbacauth "github.com/mnaimfaizy/go-rbac-auth"
)

type metricsSource interface {
	MetricsSnapshot() rbacauth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   rbacauth.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{rbacauth.MetricLoginSuccess, "rbacauth_login_success_total", "Successful login attempts."},
	{rbacauth.MetricLoginFailure, "rbacauth_login_failure_total", "Failed login attempts."},
	{rbacauth.MetricLoginThrottled, "rbacauth_login_throttled_total", "Login attempts rejected by the sliding attempt window."},
	{rbacauth.MetricAccountLocked, "rbacauth_account_locked_total", "Accounts locked after repeated failures."},
	{rbacauth.MetricAccountUnlocked, "rbacauth_account_unlocked_total", "Expired locks cleared on next attempt."},
	{rbacauth.MetricVerifySuccess, "rbacauth_verify_success_total", "Successful access token verifications."},
	{rbacauth.MetricVerifyFailure, "rbacauth_verify_failure_total", "Failed access token verifications."},
	{rbacauth.MetricRefreshSuccess, "rbacauth_refresh_success_total", "Successful refresh operations."},
	{rbacauth.MetricRefreshFailure, "rbacauth_refresh_failure_total", "Failed refresh operations."},
	{rbacauth.MetricTokenRevoked, "rbacauth_token_revoked_total", "Explicit token revocations."},
	{rbacauth.MetricLogout, "rbacauth_logout_total", "Single-session logout operations."},
	{rbacauth.MetricLogoutAll, "rbacauth_logout_all_total", "Logout-all operations."},
	{rbacauth.MetricPasswordChangeSuccess, "rbacauth_password_change_success_total", "Successful password changes."},
	{rbacauth.MetricPasswordChangeInvalidOld, "rbacauth_password_change_invalid_old_total", "Password change attempts with a wrong current password."},
	{rbacauth.MetricPasswordChangeReuseRejected, "rbacauth_password_change_reuse_rejected_total", "Password change attempts rejected for reuse."},
	{rbacauth.MetricPasswordResetRequest, "rbacauth_password_reset_request_total", "Password reset requests."},
	{rbacauth.MetricPasswordResetConfirmSuccess, "rbacauth_password_reset_confirm_success_total", "Successful password reset confirmations."},
	{rbacauth.MetricPasswordResetConfirmFailure, "rbacauth_password_reset_confirm_failure_total", "Failed password reset confirmations."},
	{rbacauth.MetricEmailVerificationRequest, "rbacauth_email_verification_request_total", "Email verification requests."},
	{rbacauth.MetricEmailVerificationSuccess, "rbacauth_email_verification_success_total", "Successful email verifications."},
	{rbacauth.MetricEmailVerificationFailure, "rbacauth_email_verification_failure_total", "Failed email verifications."},
	{rbacauth.MetricPermissionGranted, "rbacauth_permission_granted_total", "Permission checks that granted access."},
	{rbacauth.MetricPermissionDenied, "rbacauth_permission_denied_total", "Permission checks that denied access."},
	{rbacauth.MetricHierarchyReload, "rbacauth_hierarchy_reload_total", "Successful hierarchy snapshot reloads."},
}

// verifyBounds are the upper bounds of the verification latency buckets in
// seconds. The last engine bucket is open-ended and maps to +Inf.
var verifyBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// Exporter is a [prometheus.Collector] over the engine's counters. Each
// Collect call takes a fresh snapshot, so one Exporter registered in one
// registry is all a process needs.
type Exporter struct {
	source       metricsSource
	counterDescs map[rbacauth.MetricID]*prometheus.Desc
	verifyDesc   *prometheus.Desc
	droppedDesc  *prometheus.Desc
}

// NewExporter creates an Exporter reading from the given engine.
func NewExporter(engine *rbacauth.Engine) *Exporter {
	return newExporter(engine)
}

// NewExporterFromSource creates an Exporter from a custom snapshot source,
// mainly for tests.
func NewExporterFromSource(source metricsSource) *Exporter {
	return newExporter(source)
}

func newExporter(source metricsSource) *Exporter {
	e := &Exporter{
		source:       source,
		counterDescs: make(map[rbacauth.MetricID]*prometheus.Desc, len(counterDefs)),
		verifyDesc: prometheus.NewDesc(
			"rbacauth_verify_latency_seconds",
			"Access token verification latency.",
			nil, nil,
		),
		droppedDesc: prometheus.NewDesc(
			"rbacauth_audit_dropped_total",
			"Audit events dropped due to dispatcher backpressure.",
			nil, nil,
		),
	}
	for _, def := range counterDefs {
		e.counterDescs[def.id] = prometheus.NewDesc(def.name, def.help, nil, nil)
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range counterDefs {
		ch <- e.counterDescs[def.id]
	}
	ch <- e.verifyDesc
	ch <- e.droppedDesc
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snapshot := e.source.MetricsSnapshot()

	for _, def := range counterDefs {
		ch <- prometheus.MustNewConstMetric(
			e.counterDescs[def.id],
			prometheus.CounterValue,
			float64(snapshot.Counters[def.id]),
		)
	}

	if raw, ok := snapshot.Histograms[rbacauth.MetricVerifyLatency]; ok {
		ch <- constVerifyHistogram(e.verifyDesc, raw)
	}

	ch <- prometheus.MustNewConstMetric(
		e.droppedDesc,
		prometheus.CounterValue,
		float64(e.source.AuditDropped()),
	)
}

// constVerifyHistogram converts the engine's per-bucket counts into the
// cumulative form Prometheus histograms use. The engine does not track a
// sum, so the sum is approximated from bucket upper bounds.
func constVerifyHistogram(desc *prometheus.Desc, raw []uint64) prometheus.Metric {
	buckets := make(map[float64]uint64, len(verifyBounds))
	var count uint64
	var sum float64

	for i, n := range raw {
		count += n
		if i < len(verifyBounds) {
			sum += float64(n) * verifyBounds[i]
			buckets[verifyBounds[i]] = count
		} else {
			sum += float64(n) * verifyBounds[len(verifyBounds)-1]
		}
	}

	return prometheus.MustNewConstHistogram(desc, count, sum, buckets)
}

// Handler returns an http.Handler serving only this exporter's metrics from
// a private registry. Callers embedding the engine in a larger process can
// instead register the Exporter in their own registry.
func (e *Exporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

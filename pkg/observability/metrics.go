package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	OrganizationsCreatedTotal prometheus.Counter
	InvitationsIssuedTotal    prometheus.Counter
	InvitationAcceptsTotal    *prometheus.CounterVec
	MembersRemovedTotal       prometheus.Counter
	RoleChangesTotal          prometheus.Counter
	ActivityPrunedTotal       prometheus.Counter

	// Cache metrics
	RoleCacheHitsTotal   *prometheus.CounterVec
	RoleCacheMissesTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobtrail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobtrail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		OrganizationsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_organizations_created_total",
			Help: "Total number of organizations created",
		}),
		InvitationsIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_invitations_issued_total",
			Help: "Total number of invitations issued",
		}),
		InvitationAcceptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobtrail_invitation_accepts_total",
				Help: "Invitation acceptance attempts by outcome",
			},
			[]string{"outcome"},
		),
		MembersRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_members_removed_total",
			Help: "Total number of members removed",
		}),
		RoleChangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_role_changes_total",
			Help: "Total number of member role changes",
		}),
		ActivityPrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_activity_pruned_total",
			Help: "Total number of activity log entries pruned",
		}),
		RoleCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobtrail_role_cache_hits_total",
				Help: "Role cache hits by tier",
			},
			[]string{"tier"},
		),
		RoleCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobtrail_role_cache_misses_total",
			Help: "Role cache misses",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrganizationsCreatedTotal,
		m.InvitationsIssuedTotal,
		m.InvitationAcceptsTotal,
		m.MembersRemovedTotal,
		m.RoleChangesTotal,
		m.ActivityPrunedTotal,
		m.RoleCacheHitsTotal,
		m.RoleCacheMissesTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

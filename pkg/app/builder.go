// Package app assembles and runs the catalogue server: stores, lifecycle
// managers, public mirrors, synchronization hooks and the HTTP API.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	"golang.org/x/sync/errgroup"

	"github.com/eosc-beyond/resource-catalogue-server/internal/api"
	v1 "github.com/eosc-beyond/resource-catalogue-server/internal/api/v1"
	"github.com/eosc-beyond/resource-catalogue-server/internal/auth"
	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/config"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
	"github.com/eosc-beyond/resource-catalogue-server/internal/manager"
	"github.com/eosc-beyond/resource-catalogue-server/internal/notify"
	"github.com/eosc-beyond/resource-catalogue-server/internal/public"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store/inmemory"
	osstore "github.com/eosc-beyond/resource-catalogue-server/internal/store/opensearch"
	"github.com/eosc-beyond/resource-catalogue-server/internal/synchook"
	"github.com/eosc-beyond/resource-catalogue-server/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	readinessTimeout = 5 * time.Second
)

// facetFields are the indexed fields aggregated into search facets.
var facetFields = []string{
	bundle.FieldStatus,
	bundle.FieldCatalogueID,
	bundle.FieldResourceOrganisation,
	bundle.FieldTemplateStatus,
}

// CatalogueAppBuilder builds a CatalogueApp using the builder pattern.
// It supports dependency injection for testing while providing sensible
// defaults for production.
type CatalogueAppBuilder struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	mailer notify.Mailer
	topic  synchook.TopicPublisher

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

// NewCatalogueAppBuilder creates a new builder with the given configuration
func NewCatalogueAppBuilder(cfg *config.Config) *CatalogueAppBuilder {
	return &CatalogueAppBuilder{
		config:         cfg,
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}
}

// WithAddress sets the HTTP server address
func (b *CatalogueAppBuilder) WithAddress(addr string) *CatalogueAppBuilder {
	b.address = addr
	return b
}

// WithMiddlewares sets custom HTTP middlewares
func (b *CatalogueAppBuilder) WithMiddlewares(mw ...func(http.Handler) http.Handler) *CatalogueAppBuilder {
	b.middlewares = mw
	return b
}

// WithMailer allows injecting a custom mailer (for testing)
func (b *CatalogueAppBuilder) WithMailer(m notify.Mailer) *CatalogueAppBuilder {
	b.mailer = m
	return b
}

// WithTopicPublisher allows injecting a custom topic publisher (for testing)
func (b *CatalogueAppBuilder) WithTopicPublisher(p synchook.TopicPublisher) *CatalogueAppBuilder {
	b.topic = p
	return b
}

// kindComponents gathers everything one resource kind contributes to the
// application.
type kindComponents struct {
	router   v1.KindRouter
	syncer   synchook.Syncer
	verifier synchook.ResourceVerifier
}

// Build constructs the CatalogueApp from the builder configuration
func (b *CatalogueAppBuilder) Build() (*CatalogueApp, error) {
	secret, err := b.config.Auth.GetSecret()
	if err != nil {
		return nil, err
	}

	var client *opensearchapi.Client
	if b.config.GetStoreType() == "opensearch" {
		client, err = osstore.NewClient(b.config.Store.OpenSearch)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to OpenSearch", "addresses", b.config.Store.OpenSearch.Addresses)
	}

	metrics := telemetry.New()
	bus := events.NewBus(
		events.WithQueueSize(b.config.Sync.GetEventQueueSize()),
		events.WithOutcomeObserver(metrics.ObserveHookOutcome),
	)

	catalogueID := b.config.GetCatalogueID()
	maxWait := b.config.Sync.GetPublicationMaxWait()

	// The provider kind comes first: every other kind validates against it.
	providerRepo := buildRepository[*bundle.Provider](b, client, bundle.KindProvider, false)
	providers := manager.NewProviderManager(catalogueID, providerRepo, bus)
	providerMirror := public.NewMirror(bundle.KindProvider, providerRepo,
		buildRepository[*bundle.Provider](b, client, bundle.KindProvider, true),
		public.WithMaxWait[*bundle.Provider](maxWait))

	providerParts := kindComponents{
		router: v1.ForKind(
			v1.NewResourceRoutes(providers.ResourceManager, func() *bundle.Provider { return &bundle.Provider{} }),
			v1.NewPublicRoutes(providerMirror),
		),
		syncer: providerMirror,
	}

	resourceParts := []kindComponents{
		buildKind(b, client, bundle.KindService, providers, bus, maxWait,
			func() *bundle.Service { return &bundle.Service{} }),
		buildKind(b, client, bundle.KindDatasource, providers, bus, maxWait,
			func() *bundle.Datasource { return &bundle.Datasource{} }),
		buildKind(b, client, bundle.KindTrainingResource, providers, bus, maxWait,
			func() *bundle.TrainingResource { return &bundle.TrainingResource{} }),
		buildKind(b, client, bundle.KindInteroperabilityRecord, providers, bus, maxWait,
			func() *bundle.InteroperabilityRecord { return &bundle.InteroperabilityRecord{} }),
		buildKind(b, client, bundle.KindResourceInteroperabilityRecord, providers, bus, maxWait,
			func() *bundle.ResourceInteroperabilityRecord { return &bundle.ResourceInteroperabilityRecord{} }),
	}

	topic, conn, err := b.connectTopic()
	if err != nil {
		return nil, err
	}

	if err := b.subscribeHooks(bus, catalogueID, providers, topic, providerParts, resourceParts); err != nil {
		return nil, err
	}

	routers := make([]v1.KindRouter, 0, len(resourceParts)+1)
	routers = append(routers, providerParts.router)
	for _, parts := range resourceParts {
		routers = append(routers, parts.router)
	}

	server := b.buildHTTPServer(v1.Router(routers...), secret, metrics, readinessCheck(client, conn))

	return &CatalogueApp{
		config:     b.config,
		bus:        bus,
		httpServer: server,
	}, nil
}

// buildKind wires the repositories, manager, mirror and routes of one
// resource kind.
func buildKind[T bundle.Payload](
	b *CatalogueAppBuilder,
	client *opensearchapi.Client,
	kind bundle.Kind,
	providers *manager.ProviderManager,
	bus *events.Bus,
	maxWait time.Duration,
	newPayload func() T,
) kindComponents {
	private := buildRepository[T](b, client, kind, false)
	mgr := manager.New(kind, b.config.GetCatalogueID(), private, providers, bus)
	mirror := public.NewMirror(kind, private, buildRepository[T](b, client, kind, true),
		public.WithMaxWait[T](maxWait))

	return kindComponents{
		router: v1.ForKind(v1.NewResourceRoutes(mgr, newPayload), v1.NewPublicRoutes(mirror)),
		syncer: mirror,
		verifier: synchook.ResourceVerifier{
			Kind: kind,
			Verify: func(ctx context.Context, ident auth.Identity, id, status string, active bool) error {
				_, err := mgr.Verify(ctx, ident, id, status, active)
				return err
			},
		},
	}
}

// buildRepository creates the private or public repository of one kind on the
// configured store.
func buildRepository[T bundle.Payload](
	b *CatalogueAppBuilder,
	client *opensearchapi.Client,
	kind bundle.Kind,
	publicCopy bool,
) store.Repository[*bundle.Bundle[T]] {
	indexer := func(bd *bundle.Bundle[T]) map[string]string {
		return bundle.IndexFields(bd)
	}

	if client != nil {
		index := b.config.Store.OpenSearch.GetIndexPrefix() + "-" + kind.Name
		if publicCopy {
			index = b.config.Store.OpenSearch.GetIndexPrefix() + "-public-" + kind.Name
		}
		return osstore.New(client, index, indexer,
			osstore.WithFacetFields[*bundle.Bundle[T]](facetFields...))
	}

	return inmemory.New(indexer,
		inmemory.WithFacetFields[*bundle.Bundle[T]](facetFields...))
}

// connectTopic returns the notification topic publisher: the injected one
// when set, otherwise a NATS connection when messaging is configured.
func (b *CatalogueAppBuilder) connectTopic() (synchook.TopicPublisher, *nats.Conn, error) {
	if b.topic != nil {
		return b.topic, nil, nil
	}
	if b.config.Messaging == nil {
		return nil, nil, nil
	}

	conn, err := nats.Connect(b.config.Messaging.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("connected to NATS", "url", b.config.Messaging.URL)
	return conn, conn, nil
}

// readinessCheck probes the backing services concurrently. Components that
// are not configured are skipped.
func readinessCheck(client *opensearchapi.Client, conn *nats.Conn) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		if client != nil {
			g.Go(func() error {
				if _, err := client.Ping(ctx, nil); err != nil {
					return fmt.Errorf("opensearch not reachable: %w", err)
				}
				return nil
			})
		}
		if conn != nil {
			g.Go(func() error {
				if !conn.IsConnected() {
					return fmt.Errorf("nats connection is %s", conn.Status())
				}
				return nil
			})
		}
		return g.Wait()
	}
}

// subscribeHooks registers the synchronization hooks on the event bus.
func (b *CatalogueAppBuilder) subscribeHooks(
	bus *events.Bus,
	catalogueID string,
	providers *manager.ProviderManager,
	topic synchook.TopicPublisher,
	providerParts kindComponents,
	resourceParts []kindComponents,
) error {
	syncers := []synchook.Syncer{providerParts.syncer}
	verifiers := make([]synchook.ResourceVerifier, 0, len(resourceParts))
	for _, parts := range resourceParts {
		syncers = append(syncers, parts.syncer)
		verifiers = append(verifiers, parts.verifier)
	}

	if err := bus.Subscribe(synchook.NewMirrorHook(syncers...)); err != nil {
		return err
	}
	if err := bus.Subscribe(synchook.NewTemplateStatusHook(catalogueID, providers, verifiers...)); err != nil {
		return err
	}

	mailer := b.mailer
	var moderators []string
	if mailer == nil {
		if b.config.Mail != nil {
			mailer = notify.NewSMTPMailer(
				b.config.Mail.Host, b.config.Mail.Port, b.config.Mail.From,
				b.config.Mail.Username, b.config.Mail.Password)
		} else {
			mailer = notify.LogMailer{}
		}
	}
	if b.config.Mail != nil {
		moderators = b.config.Mail.Moderators
	}
	if err := bus.Subscribe(synchook.NewMailHook(catalogueID, mailer, moderators)); err != nil {
		return err
	}

	prefix := "catalogue"
	if b.config.Messaging != nil {
		prefix = b.config.Messaging.GetSubjectPrefix()
	}
	if topic != nil {
		if err := bus.Subscribe(synchook.NewTopicHook(prefix, topic)); err != nil {
			return err
		}
	}

	return nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func (b *CatalogueAppBuilder) buildHTTPServer(
	v1Router http.Handler,
	secret []byte,
	metrics *telemetry.Metrics,
	readiness func() error,
) *http.Server {
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			metrics.HTTPMiddleware,
			api.LoggingMiddleware,
			auth.Middleware(secret),
		}
	}

	router := api.NewServer(v1Router,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(metrics.Handler()),
		api.WithReadinessCheck(readiness),
	)

	return &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}
}

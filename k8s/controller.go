// Package k8s provides a Kubernetes controller that syncs Corpus CRs to a distill registry.
package k8s

import (
	"context"
	"fmt"
	"time"

	"github.com/distill-go/distill/core"
	v1 "github.com/distill-go/distill/k8s/api/v1"
	"github.com/distill-go/distill/registry"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// CorpusReconciler reconciles Corpus CRs by storing them in a registry.
type CorpusReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Registry registry.Registry
}

// Reconcile converts the Corpus CR to core.Corpus and stores it in the registry; then updates status.
func (r *CorpusReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)
	cr := &v1.Corpus{}
	if err := r.Get(ctx, req.NamespacedName, cr); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	corpus := crToCorpus(cr)
	if corpus.ID == "" {
		corpus.ID = req.Name
	}
	if corpus.Version == "" {
		corpus.Version = "1.0.0"
	}
	if err := corpus.Validate(); err != nil {
		cr.Status.Synced = false
		cr.Status.Message = err.Error()
		_ = r.Status().Update(ctx, cr)
		return ctrl.Result{}, err
	}
	if err := r.Registry.Store(ctx, corpus); err != nil {
		logger.Error(err, "failed to store corpus in registry")
		cr.Status.Synced = false
		cr.Status.Message = err.Error()
		_ = r.Status().Update(ctx, cr)
		return ctrl.Result{}, err
	}
	if cr.Spec.Stage != "" && cr.Spec.Stage != "dev" {
		_ = r.Registry.Promote(ctx, corpus.ID, corpus.Version, registry.Stage(cr.Spec.Stage))
	}
	cr.Status.Synced = true
	cr.Status.Pairs = corpus.Pairs()
	cr.Status.LastSyncTime = time.Now().UTC().Format(time.RFC3339)
	cr.Status.Message = ""
	if err := r.Status().Update(ctx, cr); err != nil {
		return ctrl.Result{}, err
	}
	logger.Info("synced corpus to registry", "id", corpus.ID, "version", corpus.Version, "pairs", corpus.Pairs())
	return ctrl.Result{}, nil
}

func crToCorpus(cr *v1.Corpus) *core.Corpus {
	c := &core.Corpus{
		ID:          cr.Spec.ID,
		Version:     cr.Spec.Version,
		Name:        cr.Spec.Name,
		Description: cr.Spec.Description,
		Source:      append([]string(nil), cr.Spec.Source...),
		Target:      append([]string(nil), cr.Spec.Target...),
		CreatedAt:   cr.CreationTimestamp.Time,
		UpdatedAt:   time.Now(),
	}
	if c.ID == "" {
		c.ID = cr.Name
	}
	if cr.Spec.Metadata != nil {
		c.Metadata = make(map[string]interface{})
		for k, val := range cr.Spec.Metadata {
			c.Metadata[k] = val
		}
	}
	return c
}

// SetupWithManager registers the reconciler with the manager.
func (r *CorpusReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&v1.Corpus{}).
		Complete(r)
}

// NewScheme returns a scheme with distill types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := v1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("add distill scheme: %w", err)
	}
	return scheme, nil
}

// Package v1 contains the Corpus CRD types.
package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced

// Corpus is the Schema for the corpora API (distill registry sync).
type Corpus struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`
	Spec              CorpusSpec   `json:"spec,omitempty"`
	Status            CorpusStatus `json:"status,omitempty"`
}

// CorpusSpec defines the desired state of Corpus.
type CorpusSpec struct {
	ID          string            `json:"id,omitempty"`
	Version     string            `json:"version,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Source      []string          `json:"source,omitempty"`
	Target      []string          `json:"target,omitempty"`
	Stage       string            `json:"stage,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CorpusStatus defines the observed state of Corpus.
type CorpusStatus struct {
	Synced       bool   `json:"synced"`
	Pairs        int    `json:"pairs,omitempty"`
	LastSyncTime string `json:"lastSyncTime,omitempty"`
	Message      string `json:"message,omitempty"`
}

// +kubebuilder:object:root=true

// CorpusList contains a list of Corpus.
type CorpusList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Corpus `json:"items"`
}

// DeepCopyObject implements runtime.Object.
func (c *Corpus) DeepCopyObject() runtime.Object {
	if c == nil {
		return nil
	}
	out := &Corpus{}
	c.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (c *Corpus) DeepCopyInto(out *Corpus) {
	*out = *c
	out.TypeMeta = c.TypeMeta
	c.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	c.Spec.DeepCopyInto(&out.Spec)
	c.Status.DeepCopyInto(&out.Status)
}

// DeepCopyInto copies CorpusSpec.
func (s *CorpusSpec) DeepCopyInto(out *CorpusSpec) {
	*out = *s
	if s.Source != nil {
		out.Source = make([]string, len(s.Source))
		copy(out.Source, s.Source)
	}
	if s.Target != nil {
		out.Target = make([]string, len(s.Target))
		copy(out.Target, s.Target)
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
}

// DeepCopyInto copies CorpusStatus.
func (s *CorpusStatus) DeepCopyInto(out *CorpusStatus) {
	*out = *s
}

// DeepCopyObject implements runtime.Object for CorpusList.
func (c *CorpusList) DeepCopyObject() runtime.Object {
	if c == nil {
		return nil
	}
	out := &CorpusList{}
	c.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the list into out.
func (c *CorpusList) DeepCopyInto(out *CorpusList) {
	*out = *c
	out.TypeMeta = c.TypeMeta
	c.ListMeta.DeepCopyInto(&out.ListMeta)
	if c.Items != nil {
		out.Items = make([]Corpus, len(c.Items))
		for i := range c.Items {
			c.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

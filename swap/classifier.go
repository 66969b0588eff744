// Copyright (c) 2026 The ordswap developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package swap

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultClassifyWorkers is the number of concurrent metadata lookups made
// while partitioning an output set.
const DefaultClassifyWorkers = 4

// Classifier tells artifact-holding outputs apart from ordinary ones. An
// output that cannot be classified is treated as protected.
type Classifier struct {
	svc     MetadataService
	workers int
}

// NewClassifier returns a Classifier making at most workers concurrent
// lookups against svc.
func NewClassifier(svc MetadataService, workers int) *Classifier {
	if workers <= 0 {
		workers = DefaultClassifyWorkers
	}
	return &Classifier{svc: svc, workers: workers}
}

// classify returns whether out is protected and whether the answer came
// from a failed lookup.
func (c *Classifier) classify(ctx context.Context,
	out *SpendableOutput) (protected, failed bool) {

	protected, err := c.svc.IsProtected(ctx, out.OutPoint)
	if err != nil {
		log.Warnf("Unable to classify output %v, excluding it from "+
			"payment: %v", out.OutPoint, err)
		return true, true
	}

	return protected, false
}

// IsProtected reports whether out must never be spent as payment.
func (c *Classifier) IsProtected(ctx context.Context,
	out SpendableOutput) bool {

	protected, _ := c.classify(ctx, &out)
	return protected
}

// Partition splits outs into ordinary and protected outputs. Both halves
// keep the order of outs. An error is only returned if ctx is done.
func (c *Classifier) Partition(ctx context.Context,
	outs []SpendableOutput) (*Partition, error) {

	protected := make([]bool, len(outs))
	failed := make([]bool, len(outs))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range outs {
		g.Go(func() error {
			protected[i], failed[i] = c.classify(ctx, &outs[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := &Partition{}
	for i, out := range outs {
		if failed[i] {
			p.LookupFailures++
		}
		if protected[i] {
			p.Protected = append(p.Protected, out)
			continue
		}
		p.Ordinary = append(p.Ordinary, out)
	}

	log.Debugf("Classified %d outputs: %d ordinary, %d protected "+
		"(%d lookup failures)", len(outs), len(p.Ordinary),
		len(p.Protected), p.LookupFailures)

	return p, nil
}

package iam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// outcome labels a candidate transaction's fate during assembly.
type outcome string

const (
	outcomeAccepted        outcome = "accepted"
	outcomeUndecodable     outcome = "undecodable"
	outcomeOversized       outcome = "oversized"
	outcomeIncompleteChain outcome = "incomplete_chain"
	outcomeMalformed       outcome = "malformed_packet"
	outcomeInvalid         outcome = "invalid"
)

var (
	iamCandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iam_candidates_total",
		Help: "Candidate root transactions examined during assembly, by outcome.",
	}, []string{"outcome"})

	iamAssembliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iam_assemblies_total",
		Help: "Assembly sessions by result.",
	}, []string{"result"})

	iamAssembleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "iam_assemble_duration_seconds",
		Help:    "Time spent assembling one index, fetch included.",
		Buckets: prometheus.DefBuckets,
	})

	iamPublishedFragmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iam_published_fragments_total",
		Help: "Transactions attached by the publisher.",
	})
)

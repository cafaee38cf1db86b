package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEscrowStatusTransitions(t *testing.T) {
	cases := []struct {
		from    EscrowStatus
		to      EscrowStatus
		allowed bool
	}{
		{EscrowStatusPending, EscrowStatusFunded, true},
		{EscrowStatusPending, EscrowStatusCancelled, true},
		{EscrowStatusPending, EscrowStatusDisputed, true},
		{EscrowStatusPending, EscrowStatusCompleted, false},
		{EscrowStatusFunded, EscrowStatusInProgress, true},
		{EscrowStatusFunded, EscrowStatusCancelled, false},
		{EscrowStatusInProgress, EscrowStatusClientReview, true},
		{EscrowStatusInProgress, EscrowStatusCompleted, false},
		{EscrowStatusClientReview, EscrowStatusFreelancerReview, true},
		{EscrowStatusClientReview, EscrowStatusCompleted, true},
		{EscrowStatusFreelancerReview, EscrowStatusCompleted, true},
		{EscrowStatusFreelancerReview, EscrowStatusClientReview, false},
		{EscrowStatusDisputed, EscrowStatusCompleted, true},
		{EscrowStatusDisputed, EscrowStatusRefunded, true},
		{EscrowStatusDisputed, EscrowStatusCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"переход %s -> %s", tc.from, tc.to)
	}
}

func TestEscrowStatusDisputeFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []EscrowStatus{
		EscrowStatusPending, EscrowStatusFunded, EscrowStatusInProgress,
		EscrowStatusClientReview, EscrowStatusFreelancerReview,
	}
	for _, s := range nonTerminal {
		assert.True(t, s.CanTransitionTo(EscrowStatusDisputed), "из %s должен открываться спор", s)
	}
}

func TestEscrowStatusTerminalStatesHaveNoExits(t *testing.T) {
	terminal := []EscrowStatus{EscrowStatusCompleted, EscrowStatusCancelled, EscrowStatusRefunded}
	all := []EscrowStatus{
		EscrowStatusPending, EscrowStatusFunded, EscrowStatusInProgress,
		EscrowStatusClientReview, EscrowStatusFreelancerReview,
		EscrowStatusCompleted, EscrowStatusDisputed, EscrowStatusCancelled, EscrowStatusRefunded,
	}

	for _, from := range terminal {
		assert.True(t, from.IsTerminal())
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "из конечного %s нет перехода в %s", from, to)
		}
	}
}

func TestEscrowParticipants(t *testing.T) {
	client := uuid.New()
	freelancer := uuid.New()
	stranger := uuid.New()

	e := &Escrow{ClientID: client, FreelancerID: freelancer}

	assert.True(t, e.IsParticipant(client))
	assert.True(t, e.IsParticipant(freelancer))
	assert.False(t, e.IsParticipant(stranger))

	assert.Equal(t, RoleClient, e.ParticipantRole(client))
	assert.Equal(t, RoleFreelancer, e.ParticipantRole(freelancer))
	assert.Equal(t, "", e.ParticipantRole(stranger))
}

func TestEscrowReviewPredicates(t *testing.T) {
	e := &Escrow{
		ClientReviewStatus:     ReviewStatusPending,
		FreelancerReviewStatus: ReviewStatusPending,
	}
	assert.False(t, e.BothPartiesReviewed())
	assert.False(t, e.BothPartiesApproved())

	e.ClientReviewStatus = ReviewStatusApproved
	assert.False(t, e.BothPartiesApproved())

	e.FreelancerReviewStatus = ReviewStatusRejected
	assert.True(t, e.BothPartiesReviewed())
	assert.False(t, e.BothPartiesApproved())

	e.FreelancerReviewStatus = ReviewStatusApproved
	assert.True(t, e.BothPartiesApproved())
}

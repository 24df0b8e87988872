package quotes

import (
	"github.com/angelmondragon/shopfloor-backend/pkg/enums"
	"github.com/angelmondragon/shopfloor-backend/pkg/fsm"
)

// Lifecycle is the quote transition table.
var Lifecycle = fsm.New[enums.QuoteStatus, enums.QuoteAction]("quote",
	fsm.Transition[enums.QuoteStatus, enums.QuoteAction]{
		From:   []enums.QuoteStatus{enums.QuoteStatusPending},
		Action: enums.QuoteActionApprove,
		To:     enums.QuoteStatusApproved,
	},
	fsm.Transition[enums.QuoteStatus, enums.QuoteAction]{
		From:   []enums.QuoteStatus{enums.QuoteStatusApproved},
		Action: enums.QuoteActionAccept,
		To:     enums.QuoteStatusAccepted,
	},
	fsm.Transition[enums.QuoteStatus, enums.QuoteAction]{
		From:   []enums.QuoteStatus{enums.QuoteStatusPending},
		Action: enums.QuoteActionReject,
		To:     enums.QuoteStatusRejected,
	},
	fsm.Transition[enums.QuoteStatus, enums.QuoteAction]{
		From:   []enums.QuoteStatus{enums.QuoteStatusPending, enums.QuoteStatusApproved, enums.QuoteStatusAccepted},
		Action: enums.QuoteActionCancel,
		To:     enums.QuoteStatusCancelled,
	},
	fsm.Transition[enums.QuoteStatus, enums.QuoteAction]{
		From:   []enums.QuoteStatus{enums.QuoteStatusApproved, enums.QuoteStatusAccepted},
		Action: enums.QuoteActionConvert,
		To:     enums.QuoteStatusConverted,
	},
)

package domain

type ctxKey string

const (
	RequesterIdCtxKey    ctxKey = "cb-requesterId"
	RequesterEmailCtxKey ctxKey = "cb-requesterEmail"
)

const (
	ClaimEventChannel = "chronobit:claims"
)

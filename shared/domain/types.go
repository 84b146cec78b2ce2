package domain

type (
	PostId    = int64
	PostTitle = string
	PostBody  = string
)

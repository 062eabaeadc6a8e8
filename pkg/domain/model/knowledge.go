package model

// TurnExchange is one finished question and answer pair of a user
type TurnExchange struct {
	TurnID   TurnID
	UserID   string
	Message  string
	Response string
}

// Knowledge is a durable fact about a user distilled from a conversation
type Knowledge struct {
	Title   string
	Summary string
}

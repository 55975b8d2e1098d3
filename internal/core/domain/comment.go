package domain

// Comment is a single comment as returned by the upstream source.
type Comment struct {
	ID              string `json:"id"`
	ParentID        string `json:"parent_id,omitempty"`
	VideoID         string `json:"video_id,omitempty"`
	AuthorName      string `json:"author_name"`
	AuthorChannelID string `json:"author_channel_id,omitempty"`
	TextDisplay     string `json:"text_display"`
	TextOriginal    string `json:"text_original,omitempty"`
	LikeCount       int64  `json:"like_count"`
	PublishedAt     string `json:"published_at"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// Thread is a top-level comment together with its replies.
//
// TotalReplyCount is the count declared by the source. Replies may hold a
// partial list embedded in the page response until it is resolved.
type Thread struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"video_id"`
	TopLevel        Comment   `json:"top_level_comment"`
	TotalReplyCount int64     `json:"total_reply_count"`
	Replies         []Comment `json:"replies,omitempty"`
}

// RepliesComplete reports whether the embedded reply list matches the
// declared reply count.
func (t Thread) RepliesComplete() bool {
	return int64(len(t.Replies)) == t.TotalReplyCount
}

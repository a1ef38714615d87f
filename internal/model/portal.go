package model

import "strings"

// Public reading portal shapes.

type PortalAuthorRef struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Slug     string `json:"slug"`
}

type PortalAuthor struct {
	ID          int64   `json:"id"`
	FullName    string  `json:"full_name"`
	BirthDate   *string `json:"birth_date"`
	DeathDate   *string `json:"death_date"`
	PhotoURL    *string `json:"photo_url"`
	PoemsCount  int     `json:"poems_count"`
	Popularity  int     `json:"popularity"`
	Slug        string  `json:"slug"`
	URLSlug     string  `json:"url_slug"`
	BiographyMD string  `json:"biography_md,omitempty"`
}

type PortalPoem struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Preview   string           `json:"preview,omitempty"`
	Text      string           `json:"text,omitempty"`
	Author    PortalAuthorRef  `json:"author"`
	Views     int              `json:"views"`
	Slug      string           `json:"slug"`
	URLSlug   string           `json:"url_slug"`
	Reactions *ReactionSummary `json:"reactions,omitempty"`
}

type PoemLink struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	URLSlug string `json:"url_slug"`
}

type Neighbors struct {
	Prev *PoemLink `json:"prev"`
	Next *PoemLink `json:"next"`
}

type ViewResult struct {
	Views   int  `json:"views"`
	Counted bool `json:"counted"`
}

type SearchResult struct {
	Authors Page[PortalAuthor] `json:"authors"`
	Poems   Page[PortalPoem]   `json:"poems"`
}

type ReactionType string

const (
	ReactionHeart ReactionType = "heart"
	ReactionFire  ReactionType = "fire"
	ReactionLike  ReactionType = "like"
	ReactionSad   ReactionType = "sad"
	ReactionStar  ReactionType = "star"
)

var ReactionTypes = []ReactionType{ReactionHeart, ReactionFire, ReactionLike, ReactionSad, ReactionStar}

func ParseReactionType(s string) (ReactionType, bool) {
	r := ReactionType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ReactionTypes {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// ReactionSummary holds per-type tallies and the visitor's own flags.
type ReactionSummary struct {
	CountsByType    map[ReactionType]int  `json:"counts_by_type"`
	UserFlagsByType map[ReactionType]bool `json:"user_flags_by_type"`
}

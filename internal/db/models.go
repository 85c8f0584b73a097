package db

import (
	"encoding/json"
	"time"
)

// Feed maps feedsift.feeds.
type Feed struct {
	FeedID         int64           `gorm:"column:feed_id;primaryKey;autoIncrement"`
	FeedUUID       string          `gorm:"column:feed_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Name           string          `gorm:"column:name;type:text;not null"`
	Visibility     string          `gorm:"column:visibility;type:feedsift.feed_visibility;not null;default:PRIVATE"`
	FilterQuery    string          `gorm:"column:filter_query;type:text;not null;default:''"`
	DataExpression json.RawMessage `gorm:"column:data_expression;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Feed) TableName() string { return "feedsift.feeds" }

// FeedItem maps feedsift.feed_items.
type FeedItem struct {
	ItemID            int64           `gorm:"column:item_id;primaryKey;autoIncrement"`
	ItemUUID          string          `gorm:"column:item_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	FeedID            int64           `gorm:"column:feed_id;type:bigint;not null"`
	ExternalID        string          `gorm:"column:external_id;type:text;not null"`
	Title             string          `gorm:"column:title;type:text;not null;default:''"`
	BodyText          string          `gorm:"column:body_text;type:text;not null;default:''"`
	URL               *string         `gorm:"column:url;type:text"`
	Author            *string         `gorm:"column:author;type:text"`
	Language          string          `gorm:"column:language;type:text;not null;default:und"`
	Tags              json.RawMessage `gorm:"column:tags;type:jsonb;not null;default:'[]'"`
	PostTime          *time.Time      `gorm:"column:post_time;type:timestamptz"`
	SemanticHash      *string         `gorm:"column:semantic_hash;type:text"`
	DuplicateIDs      json.RawMessage `gorm:"column:duplicate_ids;type:jsonb;not null;default:'[]'"`
	IsRead            bool            `gorm:"column:is_read;type:boolean;not null;default:false"`
	IsDuplicationRead bool            `gorm:"column:is_duplication_read;type:boolean;not null;default:false"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (FeedItem) TableName() string { return "feedsift.feed_items" }

func autoMigrateModels() []any {
	return []any{
		&Feed{},
		&FeedItem{},
	}
}

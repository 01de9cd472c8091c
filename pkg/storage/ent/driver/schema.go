package entdriver

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// ConversationsColumns holds the columns for the "conversations" table.
	// The full conversation is kept as JSON in body; the other columns
	// exist for listing and ordering.
	ConversationsColumns = []*schema.Column{
		{Name: colID, Type: field.TypeString, Size: 64},
		{Name: colQuery, Type: field.TypeString, Size: 2147483647},
		{Name: colStatus, Type: field.TypeString, Size: 16},
		{Name: colStartedAt, Type: field.TypeInt64},
		{Name: colCompletedAt, Type: field.TypeInt64, Default: 0},
		{Name: colBody, Type: field.TypeString, Size: 2147483647},
	}

	// ConversationsTable holds the schema information for the "conversations" table.
	ConversationsTable = &schema.Table{
		Name:       table,
		Columns:    ConversationsColumns,
		PrimaryKey: []*schema.Column{ConversationsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "conversation_started_at",
				Unique:  false,
				Columns: []*schema.Column{ConversationsColumns[3]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ConversationsTable,
	}
)

// Package channel defines the pub/sub channel address space: a tagged union
// naming what a subscription or publish targets, and the pure function that
// maps a channel to the permission required to subscribe to it.
package channel

import (
	"fmt"
	"strings"

	"github.com/loomctl/loom/internal/permission"
)

// Kind discriminates a Channel's tag.
type Kind string

const (
	KindAllTables   Kind = "all_tables"
	KindAllQueries  Kind = "all_queries"
	KindAllScripts  Kind = "all_scripts"
	KindTable       Kind = "table"
	KindQuery       Kind = "query"
	KindScript      Kind = "script"
	KindTableData   Kind = "table_data"
	KindSubscribers Kind = "subscribers"
)

// Channel is a single addressable pub/sub channel.
type Channel struct {
	Kind  Kind
	Name  string   // for Table/Query/Script/TableData
	Inner *Channel // for Subscribers
}

func AllTables() Channel  { return Channel{Kind: KindAllTables} }
func AllQueries() Channel { return Channel{Kind: KindAllQueries} }
func AllScripts() Channel { return Channel{Kind: KindAllScripts} }
func Table(name string) Channel     { return Channel{Kind: KindTable, Name: name} }
func Query(name string) Channel     { return Channel{Kind: KindQuery, Name: name} }
func Script(name string) Channel    { return Channel{Kind: KindScript, Name: name} }
func TableData(name string) Channel { return Channel{Kind: KindTableData, Name: name} }
func Subscribers(inner Channel) Channel {
	return Channel{Kind: KindSubscribers, Inner: &inner}
}

// String renders a stable textual form of the channel, used as its storage
// key in the subscription and message-log tables.
func (c Channel) String() string {
	switch c.Kind {
	case KindAllTables:
		return "all_tables"
	case KindAllQueries:
		return "all_queries"
	case KindAllScripts:
		return "all_scripts"
	case KindTable:
		return "table:" + c.Name
	case KindQuery:
		return "query:" + c.Name
	case KindScript:
		return "script:" + c.Name
	case KindTableData:
		return "table_data:" + c.Name
	case KindSubscribers:
		return "subscribers:" + c.Inner.String()
	default:
		return fmt.Sprintf("unknown:%v", c.Kind)
	}
}

// Parse reverses String, reconstructing a Channel from its storage key.
func Parse(s string) (Channel, error) {
	switch s {
	case "all_tables":
		return AllTables(), nil
	case "all_queries":
		return AllQueries(), nil
	case "all_scripts":
		return AllScripts(), nil
	}
	if rest, ok := strings.CutPrefix(s, "subscribers:"); ok {
		inner, err := Parse(rest)
		if err != nil {
			return Channel{}, err
		}
		return Subscribers(inner), nil
	}
	for prefix, ctor := range map[string]func(string) Channel{
		"table:":      Table,
		"query:":      Query,
		"script:":     Script,
		"table_data:": TableData,
	} {
		if name, ok := strings.CutPrefix(s, prefix); ok {
			return ctor(name), nil
		}
	}
	return Channel{}, fmt.Errorf("channel: unparseable encoding %q", s)
}

// RequiredPermission is a pure function mapping a channel to the permission
// a user must hold to subscribe to or publish on it. Subscribers(inner)
// delegates to inner's requirement: watching who is subscribed to a channel
// requires the same access as the channel itself.
func (c Channel) RequiredPermission() permission.Permission {
	switch c.Kind {
	case KindAllTables:
		return permission.CreateEntity(permission.EntityTable)
	case KindAllQueries:
		return permission.CreateEntity(permission.EntityQuery)
	case KindAllScripts:
		return permission.CreateEntity(permission.EntityScript)
	case KindTable:
		return permission.GetEntity(permission.EntityTable, c.Name)
	case KindQuery:
		return permission.GetEntity(permission.EntityQuery, c.Name)
	case KindScript:
		return permission.GetEntity(permission.EntityScript, c.Name)
	case KindTableData:
		return permission.GetTableData(c.Name)
	case KindSubscribers:
		return c.Inner.RequiredPermission()
	default:
		return permission.UserAdmin
	}
}

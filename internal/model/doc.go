// Package model defines the rows persisted by the relay.
package model

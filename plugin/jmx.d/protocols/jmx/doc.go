// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package jmx defines the contract between the collection engine and a remote managed-object registry:
a Dialer opens a Conn, a Conn lists beans, describes and reads their attributes and streams
registration notifications.

Attribute values are returned in one of four shapes:

	scalar      bool, integer and float kinds, string, json.Number
	Composite   named fields (CompositeData)
	*Tabular    rows addressed by index values (TabularData)
	Statistic   a JSR-77 statistic (count, time, range, bounded range)
*/
package jmx

// Package consts houses some constants needed across runcore.
package consts

// Version contains the current semantic version of runcore.
const Version = "0.4.1"

// Banner is printed by the CLI root command.
const Banner = "runcore v" + Version + " - local test execution core"

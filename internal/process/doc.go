// Package process finds running processes by executable name.
package process

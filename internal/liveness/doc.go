// Package liveness answers whether the container behind a proxy is running.
package liveness

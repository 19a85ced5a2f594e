// Command transcribelt is the operator CLI for a TranscriBelt deployment.
//
// Submission, status, download, and review commands talk to the ingress over
// HTTP. The jobs commands open the queue database directly and must run on a
// host that shares the worker's state directory.
package main

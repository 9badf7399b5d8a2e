package diagnostics

import (
	"fmt"
	"strings"
)

var kindGuidance = map[ErrorKind]string{
	ErrorKindAuth: "The fallback hosts rejected the credentials. Check the username and password " +
		"in the fallback string and the database user's authSource.",
	ErrorKindTimeout: "The fallback hosts did not answer within the configured timeouts. Add this machine's " +
		"public IP to the cluster's network access list and check outbound firewall rules for port 27017.",
	ErrorKindConnectionRefused: "The fallback hosts refused the connection. Verify the host names and ports " +
		"in the fallback string.",
	ErrorKindNetworkUnreachable: "There is no route to the fallback hosts. Check VPN, proxy or outbound network restrictions.",
	ErrorKindTLS: "TLS negotiation with the fallback hosts failed. Make sure tls=true is set in the fallback " +
		"string and the system CA bundle is current.",
	ErrorKindDNS: "The fallback host names could not be resolved either, so DNS on this network is failing. " +
		"Switch to a public resolver such as 8.8.8.8 or 1.1.1.1.",
	ErrorKindInvalidURI: "The fallback string is not a valid MongoDB connection string. Copy the standard " +
		"(mongodb://) connection string from the provider again.",
}

const defaultKindGuidance = "Check the error above, the cluster status and its network access settings."

// Recommend derives the remediation text from the probe outcomes.
func Recommend(r Report) string {
	b := &strings.Builder{}
	if r.PrimaryPlaceholder {
		fmt.Fprintln(b, "No primary endpoint is configured, so a placeholder host was probed. Set MONGODB_URI to your cluster's connection string.")
	}

	resolve, ok := r.Probe(ProbeResolve)
	if !ok {
		b.WriteString("No probe ran.")
		return strings.TrimSpace(b.String())
	}
	if resolve.Passed() {
		b.WriteString("Name resolution works, so the service-discovery connection string should be usable. " +
			"If the application still cannot connect, check credentials and the cluster's network access list.")
		return strings.TrimSpace(b.String())
	}

	fallback, ran := r.Probe(ProbeFallback)
	switch {
	case !ran || fallback.Skipped():
		fmt.Fprintf(b, "Name resolution of %s failed and no fallback connection string is configured. "+
			"Set MONGODB_URI_FALLBACK to the provider's standard (mongodb://) connection string to bypass the SRV lookup, "+
			"or switch this machine to a public DNS resolver (8.8.8.8 or 1.1.1.1).", resolve.Target)
	case fallback.Passed():
		b.WriteString("The SRV/DNS path is broken on this network but the hosts are reachable directly. " +
			"Switch the application to the fallback address-literal connection string (MONGODB_URI_FALLBACK).")
	default:
		b.WriteString("Both name resolution and the direct connection failed. ")
		if g, ok := kindGuidance[fallback.ErrorKind]; ok {
			b.WriteString(g)
		} else {
			b.WriteString(defaultKindGuidance)
		}
	}
	return strings.TrimSpace(b.String())
}

func verdict(probes []ProbeResult) Status {
	for _, p := range probes {
		if p.Passed() {
			return StatusPass
		}
	}
	return StatusFail
}

package seed

import "github.com/fyrsmithlabs/patternd/internal/pattern"

// DefaultCorpus returns the built-in failure patterns shipped with the
// engine. These cover the common development errors the matcher is most
// often asked about; operators extend the corpus via a YAML file.
func DefaultCorpus() []*pattern.Pattern {
	return []*pattern.Pattern{
		{
			Name:        "port-already-in-use",
			Category:    "network",
			Description: "A local dev server failed to start because its port is taken by another process.",
			ErrorSignatures: []string{
				`EADDRINUSE.*:\d+`,
				`address already in use`,
				`bind: address already in use`,
			},
			ConfidenceIndicators: []string{
				"port 3000 in use",
				"port 8080 in use",
				"dev_server running",
			},
			SolutionTemplate: "solutions/kill-port-process",
			ValidationScript: "checks/port-free",
		},
		{
			Name:        "node-module-not-found",
			Category:    "dependency",
			Description: "Node.js cannot resolve an imported package, usually after a missing or stale install.",
			ErrorSignatures: []string{
				`Cannot find module '.+'`,
				`Module not found: Error: Can't resolve`,
				`ERR_MODULE_NOT_FOUND`,
			},
			ConfidenceIndicators: []string{
				"node project detected",
				"npm lockfile present",
			},
			SolutionTemplate: "solutions/reinstall-node-modules",
			ValidationScript: "checks/node-resolve",
		},
		{
			Name:        "go-missing-module",
			Category:    "dependency",
			Description: "The Go toolchain cannot find a required module in go.mod or the module cache.",
			ErrorSignatures: []string{
				`no required module provides package`,
				`missing go\.sum entry`,
				`cannot find module providing package`,
			},
			ConfidenceIndicators: []string{
				"go project detected",
			},
			SolutionTemplate: "solutions/go-mod-tidy",
			ValidationScript: "checks/go-build",
		},
		{
			Name:        "database-connection-refused",
			Category:    "infrastructure",
			Description: "An application cannot reach its database, typically because the server is down or the port is wrong.",
			ErrorSignatures: []string{
				`connection refused.*(5432|3306|27017|6379)`,
				`ECONNREFUSED`,
				`dial tcp .*: connect: connection refused`,
			},
			ConfidenceIndicators: []string{
				"docker compose present",
				"database configured",
			},
			SolutionTemplate: "solutions/start-database-service",
			ValidationScript: "checks/db-ping",
		},
		{
			Name:        "typescript-type-error",
			Category:    "compile",
			Description: "TypeScript compilation failed on a type mismatch.",
			ErrorSignatures: []string{
				`TS\d{4}:`,
				`Type '.+' is not assignable to type`,
			},
			ConfidenceIndicators: []string{
				"typescript project detected",
			},
			SolutionTemplate: "solutions/typescript-type-mismatch",
		},
		{
			Name:        "out-of-memory-build",
			Category:    "resource",
			Description: "A build or test run was killed after exhausting available memory.",
			ErrorSignatures: []string{
				`JavaScript heap out of memory`,
				`signal: killed`,
				`Cannot allocate memory`,
			},
			ConfidenceIndicators: []string{
				"ci environment",
				"webpack build",
			},
			SolutionTemplate: "solutions/raise-memory-limit",
		},
		{
			Name:        "permission-denied-file",
			Category:    "filesystem",
			Description: "A tool cannot read or write a file because of filesystem permissions.",
			ErrorSignatures: []string{
				`EACCES: permission denied`,
				`permission denied`,
				`operation not permitted`,
			},
			ConfidenceIndicators: []string{
				"docker volume mounted",
			},
			SolutionTemplate: "solutions/fix-file-ownership",
			ValidationScript: "checks/file-writable",
		},
		{
			Name:        "cors-blocked-request",
			Category:    "network",
			Description: "A browser blocked a cross-origin request because the server did not allow the origin.",
			ErrorSignatures: []string{
				`has been blocked by CORS policy`,
				`No 'Access-Control-Allow-Origin' header`,
			},
			ConfidenceIndicators: []string{
				"frontend project detected",
				"api server configured",
			},
			SolutionTemplate: "solutions/configure-cors",
		},
	}
}

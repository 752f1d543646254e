package catalog

// Default returns the built-in rule set. The tables below are the
// shipped baseline; deployments can replace them with a YAML catalog
// file (see Load) without a rebuild.
//
// Keyword matching is literal substring search over lowercased input.
// Obfuscated spellings ("cl0ne", homoglyphs) are not normalized; that
// gap is covered by the rate limiter and code pattern layers instead.
func Default() *Catalog {
	c := &Catalog{
		Version: "2026-08",
		Keywords: KeywordCatalog{
			HighRisk: []string{
				"clone",
				"replicate",
				"king mouse clone",
				"copy your platform",
				"rebuild your platform",
				"build a competitor",
				"reverse engineer",
				"whitelabel your platform",
				"steal your architecture",
				"same platform as yours",
			},
			MediumRisk: []string{
				"multi-tenant",
				"multi tenant",
				"orchestration",
				"tenant isolation",
				"container per customer",
				"per-tenant billing",
				"provisioning pipeline",
				"white-label",
				"reseller program",
				"admin panel architecture",
			},
			Combinations: []Combination{
				{Keywords: []string{"docker", "customer"}, Weight: 2},
				{Keywords: []string{"docker", "per", "customer"}, Weight: 3},
				{Keywords: []string{"kubernetes", "tenant"}, Weight: 3},
				{Keywords: []string{"vm", "provision", "customer"}, Weight: 3},
				{Keywords: []string{"telegram", "bot", "factory"}, Weight: 2},
				{Keywords: []string{"billing", "tenant"}, Weight: 2},
				{Keywords: []string{"isolate", "customer", "container"}, Weight: 3},
				{Keywords: []string{"mouse", "clone"}, Weight: 4},
			},
			ContextWords: []string{
				"build",
				"create",
				"make",
				"develop",
				"design",
				"implement",
				"architect",
				"tutorial",
				"guide",
				"example",
				"scratch",
				"blueprint",
			},
		},
		CodePatterns: []CodePattern{
			{
				Name:        "docker_per_tenant",
				Severity:    SeverityCritical,
				Description: "container-per-tenant isolation",
				Patterns: []string{
					`(?i)docker\s+(run|create)[^\n]*--name[^\n]*(customer|tenant|client)`,
					`(?i)docker[-_ ]compose[^\n]*(tenant|customer)`,
					`(?i)container\s+per\s+(tenant|customer|client)`,
				},
			},
			{
				Name:        "vm_orchestration",
				Severity:    SeverityHigh,
				Description: "VM/cloud instance orchestration",
				Patterns: []string{
					`(?i)(aws|gcloud|az|hcloud|doctl)\s+[^\n]*(create|launch|provision)[^\n]*(instance|droplet|vm|server)`,
					`(?i)provision(ing)?\s+(a\s+)?(vm|virtual\s+machine|server)s?\s+(for|per)\s+(each\s+|every\s+)?(customer|tenant|user)`,
				},
			},
			{
				Name:        "telegram_bot_factory",
				Severity:    SeverityHigh,
				Description: "programmatic Telegram bot creation",
				Patterns: []string{
					`(?i)bot\s*factory`,
					`(?i)(create|spawn|register)[^\n]*telegram\s+bot[^\n]*(token|per|each)`,
					`(?i)botfather[^\n]*(automat|script|api)`,
				},
			},
			{
				Name:        "per_tenant_billing",
				Severity:    SeverityHigh,
				Description: "usage metering billed per tenant",
				Patterns: []string{
					`(?i)(stripe|billing)[^\n]*(per[- ]tenant|per[- ]customer|usage[- ]based)`,
					`(?i)meter(ing)?[^\n]*(token|usage|hour)s?[^\n]*(customer|tenant)`,
				},
			},
			{
				Name:        "multi_tenant_schema",
				Severity:    SeverityCritical,
				Description: "tenant-scoped database schema with row level security",
				Patterns: []string{
					`(?i)create\s+table[^;]*tenant_id`,
					`(?i)row\s+level\s+security`,
					`(?i)create\s+policy[^;]*tenant`,
				},
			},
			{
				Name:        "agent_deployment",
				Severity:    SeverityHigh,
				Description: "AI employee / knight fleet deployment",
				Patterns: []string{
					`(?i)(deploy|spawn|provision)[^\n]*\b(agent|knight|ai\s+employee)s?\b`,
					`(?i)\b(agent|knight)\s+(fleet|pool|deployment)\b`,
				},
			},
			{
				Name:        "workspace_isolation",
				Severity:    SeverityHigh,
				Description: "isolated workspace per customer",
				Patterns: []string{
					`(?i)(isolated?|sandbox(ed)?)\s+workspaces?\s+(per|for\s+each)\s+(customer|tenant|user)`,
					`(?i)namespace\s+per\s+(tenant|customer)`,
				},
			},
			{
				Name:        "whitelabel_infrastructure",
				Severity:    SeverityCritical,
				Description: "reseller / white-label platform infrastructure",
				Patterns: []string{
					`(?i)white[- ]?label[^\n]*(platform|infrastructure|deployment)`,
					`(?i)resell(er)?[^\n]*(platform|infrastructure)`,
				},
			},
		},
		Redactions: []RedactionRule{
			{
				Name:    "dockerfile",
				Pattern: `(?is)\bFROM\s+[a-z0-9][\w./:-]*\s*\n(?:[^\n]*\n)*?(?:CMD|ENTRYPOINT)[^\n]*`,
				Token:   "[DOCKERFILE_REDACTED]",
			},
			{
				Name:    "k8s_manifest",
				Pattern: `(?is)\bapiVersion:\s*[\w./-]+\s*\n\s*kind:\s*\w+(?:\n[^\n]*)*?(?:\n\s*\n|$)`,
				Token:   "[K8S_MANIFEST_REDACTED]",
			},
			{
				Name:    "infra_resource",
				Pattern: `(?s)\bresource\s+"(?:aws_instance|google_compute_instance|azurerm_virtual_machine|digitalocean_droplet|hcloud_server)"\s+"[^"]*"\s*\{.*?\n\}`,
				Token:   "[INFRA_RESOURCE_REDACTED]",
			},
			{
				Name:    "tenant_schema",
				Pattern: `(?is)\bcreate\s+table[^;]*tenant_id[^;]*;`,
				Token:   "[TENANT_SCHEMA_REDACTED]",
			},
			{
				Name:    "rls_policy",
				Pattern: `(?is)\b(?:alter\s+table[^;]*enable\s+row\s+level\s+security|create\s+policy[^;]+)\s*;`,
				Token:   "[RLS_POLICY_REDACTED]",
			},
		},
		Rewordings: []Rewording{
			{
				Pattern:     `(?i)tenant\s+isolation\s+via\s+docker`,
				Replacement: "customer data separation",
			},
			{
				Pattern:     `(?i)one\s+container\s+per\s+customer`,
				Replacement: "isolated customer workspaces",
			},
			{
				Pattern:     `(?i)spin\s+up\s+a\s+vm\s+for\s+each\s+customer`,
				Replacement: "allocate dedicated resources",
			},
			{
				Pattern:     `(?i)our\s+(multi-tenant|orchestration)\s+(architecture|stack|setup)`,
				Replacement: "our internal systems",
			},
		},
		Disclaimer: "Some implementation details were omitted from this response in line with the platform usage policy.",
	}

	if err := c.Compile(); err != nil {
		// Built-in tables are fixed at build time; a compile failure here
		// is a programming error, not a runtime condition.
		panic("catalog: default rules failed to compile: " + err.Error())
	}
	return c
}

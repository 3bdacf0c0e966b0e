package model

// Level strings written into category results.
const (
	GDPRCompliant          = "compliant"
	GDPRPartiallyCompliant = "partially-compliant"
	GDPRNonCompliant       = "non-compliant"

	WCAGAAA          = "AAA"
	WCAGAA           = "AA"
	WCAGA            = "A"
	WCAGNonCompliant = "non-compliant"

	SecurityHigh     = "high"
	SecurityMedium   = "medium"
	SecurityLow      = "low"
	SecurityCritical = "critical"

	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusFair      = "fair"
	StatusPoor      = "poor"
	StatusCritical  = "critical"
)

// GDPRResult holds the privacy findings of a scan.
type GDPRResult struct {
	HasCookieBanner         bool     `json:"has_cookie_banner"`
	HasPrivacyPolicy        bool     `json:"has_privacy_policy"`
	HasTermsOfService       bool     `json:"has_terms_of_service"`
	HasDataProcessingNotice bool     `json:"has_data_processing_notice"`
	HasCookiePolicy         bool     `json:"has_cookie_policy"`
	HasDataRetentionPolicy  bool     `json:"has_data_retention_policy"`
	HasUserConsentMechanism bool     `json:"has_user_consent_mechanism"`
	HasDataPortability      bool     `json:"has_data_portability"`
	HasRightToErasure       bool     `json:"has_right_to_erasure"`
	HasDataMinimization     bool     `json:"has_data_minimization"`
	HasPurposeLimitation    bool     `json:"has_purpose_limitation"`
	HasLawfulBasis          bool     `json:"has_lawful_basis"`
	Score                   int      `json:"score"`
	Issues                  []string `json:"issues"`
	Recommendations         []string `json:"recommendations"`
	ComplianceLevel         string   `json:"compliance_level"`
}

// AccessibilityResult holds the WCAG findings of a scan.
type AccessibilityResult struct {
	HasAltText             bool     `json:"has_alt_text"`
	HasProperHeadings      bool     `json:"has_proper_headings"`
	HasContrastRatio       bool     `json:"has_contrast_ratio"`
	HasKeyboardNavigation  bool     `json:"has_keyboard_navigation"`
	HasScreenReaderSupport bool     `json:"has_screen_reader_support"`
	HasFocusIndicators     bool     `json:"has_focus_indicators"`
	HasSkipLinks           bool     `json:"has_skip_links"`
	HasARIALabels          bool     `json:"has_aria_labels"`
	HasSemanticHTML        bool     `json:"has_semantic_html"`
	HasFormLabels          bool     `json:"has_form_labels"`
	HasLanguageDeclaration bool     `json:"has_language_declaration"`
	HasErrorHandling       bool     `json:"has_error_handling"`
	Score                  int      `json:"score"`
	Issues                 []string `json:"issues"`
	Recommendations        []string `json:"recommendations"`
	WCAGLevel              string   `json:"wcag_level"`
}

// SecurityResult holds the transport and header findings of a scan.
type SecurityResult struct {
	HasHTTPS               bool     `json:"has_https"`
	HasSecurityHeaders     bool     `json:"has_security_headers"`
	HasCSP                 bool     `json:"has_csp"`
	HasHSTS                bool     `json:"has_hsts"`
	HasXFrameOptions       bool     `json:"has_x_frame_options"`
	HasXContentTypeOptions bool     `json:"has_x_content_type_options"`
	HasReferrerPolicy      bool     `json:"has_referrer_policy"`
	HasPermissionsPolicy   bool     `json:"has_permissions_policy"`
	HasSecureCookies       bool     `json:"has_secure_cookies"`
	HasCSRFProtection      bool     `json:"has_csrf_protection"`
	HasInputValidation     bool     `json:"has_input_validation"`
	HasOutputEncoding      bool     `json:"has_output_encoding"`
	HasSessionManagement   bool     `json:"has_session_management"`
	HasErrorHandling       bool     `json:"has_error_handling"`
	Score                  int      `json:"score"`
	Issues                 []string `json:"issues"`
	Recommendations        []string `json:"recommendations"`
	SecurityLevel          string   `json:"security_level"`
}

// PerformanceResult holds page-speed measurements of a scan.
type PerformanceResult struct {
	LoadTime                float64  `json:"load_time"`
	PageSize                int64    `json:"page_size"`
	ImageOptimization       bool     `json:"image_optimization"`
	Minification            bool     `json:"minification"`
	Compression             bool     `json:"compression"`
	Caching                 bool     `json:"caching"`
	CDNUsage                bool     `json:"cdn_usage"`
	RenderBlockingResources int      `json:"render_blocking_resources"`
	UnusedCSS               int      `json:"unused_css"`
	UnusedJS                int      `json:"unused_js"`
	FirstContentfulPaint    float64  `json:"first_contentful_paint"`
	LargestContentfulPaint  float64  `json:"largest_contentful_paint"`
	CumulativeLayoutShift   float64  `json:"cumulative_layout_shift"`
	FirstInputDelay         float64  `json:"first_input_delay"`
	Score                   int      `json:"score"`
	Issues                  []string `json:"issues"`
	Recommendations         []string `json:"recommendations"`
	PerformanceGrade        string   `json:"performance_grade"`
}

// SEOResult holds search-engine findings of a scan.
type SEOResult struct {
	HasMetaTitle          bool     `json:"has_meta_title"`
	HasMetaDescription    bool     `json:"has_meta_description"`
	HasOpenGraph          bool     `json:"has_open_graph"`
	HasTwitterCard        bool     `json:"has_twitter_card"`
	HasStructuredData     bool     `json:"has_structured_data"`
	HasSitemap            bool     `json:"has_sitemap"`
	HasRobotsTxt          bool     `json:"has_robots_txt"`
	HasCanonicalURL       bool     `json:"has_canonical_url"`
	HasInternalLinking    bool     `json:"has_internal_linking"`
	HasHeadingStructure   bool     `json:"has_heading_structure"`
	HasImageOptimization  bool     `json:"has_image_optimization"`
	HasMobileOptimization bool     `json:"has_mobile_optimization"`
	HasPageSpeed          bool     `json:"has_page_speed"`
	HasSSL                bool     `json:"has_ssl"`
	Score                 int      `json:"score"`
	Issues                []string `json:"issues"`
	Recommendations       []string `json:"recommendations"`
	SEOScore              int      `json:"seo_score"`
}

// TechnicalDetails are best-effort facts about the scanned site.
type TechnicalDetails struct {
	ServerInfo   string   `json:"server_info,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Frameworks   []string `json:"frameworks,omitempty"`
	CMS          string   `json:"cms,omitempty"`
	Hosting      string   `json:"hosting,omitempty"`
}

// OverallResult is the aggregate over the requested categories.
type OverallResult struct {
	Score            int      `json:"score"`
	Grade            string   `json:"grade"`
	TotalIssues      int      `json:"total_issues"`
	Recommendations  []string `json:"recommendations"`
	PriorityIssues   []string `json:"priority_issues"`
	ComplianceStatus string   `json:"compliance_status"`
}

// CategoryResults is what an analyzer hands back for one page.
type CategoryResults struct {
	GDPR             GDPRResult          `json:"gdpr"`
	Accessibility    AccessibilityResult `json:"accessibility"`
	Security         SecurityResult      `json:"security"`
	Performance      PerformanceResult   `json:"performance"`
	SEO              SEOResult           `json:"seo"`
	TechnicalDetails TechnicalDetails    `json:"technical_details"`
}

// ScanResults is the persisted outcome of a ScanRecord.
type ScanResults struct {
	GDPR             GDPRResult          `json:"gdpr"`
	Accessibility    AccessibilityResult `json:"accessibility"`
	Security         SecurityResult      `json:"security"`
	Performance      PerformanceResult   `json:"performance"`
	SEO              SEOResult           `json:"seo"`
	Overall          OverallResult       `json:"overall"`
	TechnicalDetails TechnicalDetails    `json:"technical_details"`
}

// DefaultScanResults returns the values an un-requested category keeps.
func DefaultScanResults() ScanResults {
	return ScanResults{
		GDPR:          GDPRResult{Issues: []string{}, Recommendations: []string{}, ComplianceLevel: GDPRNonCompliant},
		Accessibility: AccessibilityResult{Issues: []string{}, Recommendations: []string{}, WCAGLevel: WCAGNonCompliant},
		Security:      SecurityResult{Issues: []string{}, Recommendations: []string{}, SecurityLevel: SecurityCritical},
		Performance:   PerformanceResult{Issues: []string{}, Recommendations: []string{}, PerformanceGrade: "F"},
		SEO:           SEOResult{Issues: []string{}, Recommendations: []string{}},
		Overall: OverallResult{
			Grade:            "F",
			Recommendations:  []string{},
			PriorityIssues:   []string{},
			ComplianceStatus: StatusCritical,
		},
	}
}

// Package rodpage implements navigator.PageAdapter on a go-rod controlled browser.
package rodpage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/navigator"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pacing"
)

// Selectors and labels of the portal's search UI.
const (
	selSearchForm   = "div.second-search"
	selChallengeImg = "div.n-captcha img"
	selRefresh      = "div.n-captcha i.refresh-icon"
	selRegionTabs   = "div.second-n-radio > div"
	selRows         = "table tbody tr"
	selNext         = "button.btn-next"
	selJumpInput    = ".el-pagination__editor input"
	selActivePage   = ".el-pager li.active, .el-pager li.is-active"

	labelIntentionTab = "意向公开"
	labelChallenge    = "验证码"
	labelTitle        = "公告标题"
	labelStartDate    = "开始时间"
	labelEndDate      = "结束时间"
	labelSearch       = "查询"
	labelWrongAnswer  = "验证码错误"

	classActive   = "is_active"
	classDisabled = "disabled"

	provinceRegion = domain.DefaultRegion
	openWait       = 3 * time.Second
)

// hideWebdriver masks the automation flag before any page script runs.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined })`

// Config configures the browser session.
type Config struct {
	SearchURL      string
	Headless       bool
	BrowserBin     string
	ElementTimeout time.Duration
	// Settle is waited after clicks and while dwelling on detail pages.
	Settle *pacing.Pacer
}

// Page drives one browser tab.
type Page struct {
	cfg     Config
	browser *rod.Browser
	page    *rod.Page
}

var _ navigator.PageAdapter = (*Page)(nil)

// Launch starts a browser and opens a blank tab.
func Launch(ctx context.Context, cfg Config) (*Page, error) {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", "1920,1080").
		Set("disable-blink-features", "AutomationControlled")
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err = browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	if _, err = page.EvalOnNewDocument(hideWebdriver); err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("install init script: %w", err)
	}

	return &Page{cfg: cfg, browser: browser, page: page}, nil
}

func (p *Page) on(ctx context.Context) *rod.Page {
	return p.page.Context(ctx)
}

func (p *Page) wait(ctx context.Context) {
	if p.cfg.Settle != nil {
		_ = p.cfg.Settle.Wait(ctx)
	}
}

// Open navigates to the search page and waits for the form.
func (p *Page) Open(ctx context.Context) error {
	pg := p.on(ctx)
	if err := pg.Navigate(p.cfg.SearchURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	if _, err := pg.Timeout(p.cfg.ElementTimeout).Element(selSearchForm); err != nil {
		return fmt.Errorf("search form: %w", navigator.ErrElementNotFound)
	}
	return nil
}

// SelectIntentionTab clicks the intention tab unless it is already active.
func (p *Page) SelectIntentionTab(ctx context.Context) error {
	li, err := p.elementWithText(ctx, "li", labelIntentionTab)
	if err != nil {
		return err
	}
	if hasClass(li, classActive) {
		return nil
	}
	if err = li.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click intention tab: %w", err)
	}
	p.wait(ctx)
	return nil
}

// ApplyCriteria selects the region scope and fills the title and date inputs.
func (p *Page) ApplyCriteria(ctx context.Context, criteria domain.SearchCriteria) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(p.selectRegion(ctx, criteria.Region))
	if criteria.Title != "" {
		keep(p.fillInput(ctx, labelTitle, criteria.Title, true))
	}
	if criteria.StartDate != "" {
		keep(p.fillInput(ctx, labelStartDate, criteria.StartDate, false))
		keep(p.blur(ctx))
	}
	if criteria.EndDate != "" {
		keep(p.fillInput(ctx, labelEndDate, criteria.EndDate, false))
		keep(p.blur(ctx))
	}
	return firstErr
}

// selectRegion picks the province tab for the province code and the city/county
// tab for anything else.
func (p *Page) selectRegion(ctx context.Context, region string) error {
	tabs, err := p.on(ctx).Elements(selRegionTabs)
	if err != nil || len(tabs) < 2 {
		return fmt.Errorf("region tabs: %w", navigator.ErrElementNotFound)
	}
	tab := tabs[1]
	if region == provinceRegion {
		tab = tabs[0]
	}
	if hasClass(tab, classActive) {
		return nil
	}
	if err = tab.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click region tab: %w", err)
	}
	p.wait(ctx)
	return nil
}

func (p *Page) fillInput(ctx context.Context, label, value string, replace bool) error {
	inp, err := p.inputByLabel(ctx, label)
	if err != nil {
		return err
	}
	if replace {
		if err = inp.SelectAllText(); err != nil {
			return fmt.Errorf("select %s: %w", label, err)
		}
	}
	if err = inp.Input(value); err != nil {
		return fmt.Errorf("type %s: %w", label, err)
	}
	return nil
}

// blur clicks the page body so date pickers commit their value.
func (p *Page) blur(ctx context.Context) error {
	body, err := p.on(ctx).Element("body")
	if err != nil {
		return fmt.Errorf("body: %w", err)
	}
	return body.Click(proto.InputMouseButtonLeft, 1)
}

// ChallengeVisible reports a displayed challenge image with an answer input.
func (p *Page) ChallengeVisible(ctx context.Context) bool {
	img, err := p.challengeImage(ctx)
	if err != nil {
		return false
	}
	if visible, visErr := img.Visible(); visErr != nil || !visible {
		return false
	}
	_, err = p.inputByLabel(ctx, labelChallenge)
	return err == nil
}

// RefreshChallenge clicks the refresh icon.
func (p *Page) RefreshChallenge(ctx context.Context) error {
	icons, err := p.on(ctx).Elements(selRefresh)
	if err != nil || len(icons) == 0 {
		return fmt.Errorf("refresh icon: %w", navigator.ErrElementNotFound)
	}
	return icons.First().Click(proto.InputMouseButtonLeft, 1)
}

// ChallengeImage screenshots the challenge image element.
func (p *Page) ChallengeImage(ctx context.Context) ([]byte, error) {
	img, err := p.challengeImage(ctx)
	if err != nil {
		return nil, err
	}
	shot, err := img.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("screenshot challenge: %w", err)
	}
	return shot, nil
}

func (p *Page) challengeImage(ctx context.Context) (*rod.Element, error) {
	imgs, err := p.on(ctx).Elements(selChallengeImg)
	if err != nil || len(imgs) == 0 {
		return nil, fmt.Errorf("challenge image: %w", navigator.ErrElementNotFound)
	}
	return imgs.First(), nil
}

// EnterChallengeAnswer replaces the challenge input's value.
func (p *Page) EnterChallengeAnswer(ctx context.Context, answer string) error {
	return p.fillInput(ctx, labelChallenge, answer, true)
}

// Submit clicks the search button.
func (p *Page) Submit(ctx context.Context) error {
	btn, err := p.elementWithText(ctx, "button", labelSearch)
	if err != nil {
		return err
	}
	if err = btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click search: %w", err)
	}
	return nil
}

// WrongAnswerShown checks the rendered markup for the wrong-answer notice.
func (p *Page) WrongAnswerShown(ctx context.Context) bool {
	html, err := p.on(ctx).HTML()
	if err != nil {
		return false
	}
	return strings.Contains(html, labelWrongAnswer)
}

// RowCount counts visible listing rows.
func (p *Page) RowCount(ctx context.Context) int {
	return len(p.visibleRows(ctx))
}

// ReadRow returns the cell texts of visible row i.
func (p *Page) ReadRow(ctx context.Context, i int) ([]string, error) {
	rows := p.visibleRows(ctx)
	if i >= len(rows) {
		return nil, navigator.ErrRowGone
	}
	cells, err := rows[i].Elements("td")
	if err != nil {
		return nil, fmt.Errorf("row cells: %w", err)
	}
	texts := make([]string, 0, len(cells))
	for _, cell := range cells {
		txt, textErr := cell.Text()
		if textErr != nil {
			txt = ""
		}
		texts = append(texts, strings.TrimSpace(txt))
	}
	return texts, nil
}

// OpenDetail clicks the title of visible row i. A new tab is read and closed; an
// in-place navigation is read and navigated back.
func (p *Page) OpenDetail(ctx context.Context, i int) (string, error) {
	rows := p.visibleRows(ctx)
	if i >= len(rows) {
		return "", navigator.ErrRowGone
	}
	cells, err := rows[i].Elements("td")
	if err != nil || len(cells) < 3 {
		return "", fmt.Errorf("title cell: %w", navigator.ErrElementNotFound)
	}
	target := cells[2]
	if spans, spanErr := target.Elements("span"); spanErr == nil && len(spans) > 0 {
		target = spans.First()
	}

	if err = target.ScrollIntoView(); err != nil {
		return "", fmt.Errorf("scroll to row: %w", err)
	}
	p.wait(ctx)

	before, err := p.on(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, openWait)
	defer cancel()
	waitOpen := p.page.Context(waitCtx).WaitOpen()

	if err = target.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("click title: %w", err)
	}

	if tab, openErr := waitOpen(); openErr == nil && tab != nil {
		return p.readNewTab(ctx, tab)
	}

	after, err := p.on(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	if after.URL == before.URL {
		return "", nil
	}

	detailURL := after.URL
	if err = p.on(ctx).NavigateBack(); err != nil {
		return detailURL, fmt.Errorf("navigate back: %w", err)
	}
	if _, err = p.on(ctx).Timeout(p.cfg.ElementTimeout).Element(selRows); err != nil {
		return detailURL, fmt.Errorf("listing after back: %w", navigator.ErrElementNotFound)
	}
	return detailURL, nil
}

func (p *Page) readNewTab(ctx context.Context, tab *rod.Page) (string, error) {
	defer func() { _ = tab.Close() }()

	tab = tab.Context(ctx)
	_ = tab.WaitLoad()
	p.wait(ctx)

	info, err := tab.Info()
	if err != nil {
		return "", fmt.Errorf("detail tab info: %w", err)
	}
	return info.URL, nil
}

// NextPage clicks the next button unless it is disabled.
func (p *Page) NextPage(ctx context.Context) (bool, error) {
	btns, err := p.on(ctx).Elements(selNext)
	if err != nil || len(btns) == 0 {
		return false, nil
	}
	btn := btns.First()
	if hasClass(btn, classDisabled) {
		return false, nil
	}
	if disabled, attrErr := btn.Attribute("disabled"); attrErr == nil && disabled != nil {
		return false, nil
	}
	if err = btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click next: %w", err)
	}
	return true, nil
}

// JumpToPage types n into the pager's jump input and presses enter.
func (p *Page) JumpToPage(ctx context.Context, n int) error {
	inputs, err := p.on(ctx).Elements(selJumpInput)
	if err != nil || len(inputs) == 0 {
		return fmt.Errorf("page jump input: %w", navigator.ErrElementNotFound)
	}
	inp := inputs.First()
	if err = inp.SelectAllText(); err != nil {
		return fmt.Errorf("select jump input: %w", err)
	}
	if err = inp.Input(strconv.Itoa(n)); err != nil {
		return fmt.Errorf("type page: %w", err)
	}
	p.wait(ctx)
	if err = inp.Type(input.Enter); err != nil {
		return fmt.Errorf("submit page jump: %w", err)
	}
	return nil
}

// CurrentPage reads the active pager item.
func (p *Page) CurrentPage(ctx context.Context) int {
	items, err := p.on(ctx).Elements(selActivePage)
	if err != nil || len(items) == 0 {
		return 0
	}
	txt, err := items.First().Text()
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(txt))
	if err != nil {
		return 0
	}
	return n
}

// Close shuts the browser down.
func (p *Page) Close() error {
	return p.browser.Close()
}

func (p *Page) visibleRows(ctx context.Context) rod.Elements {
	rows, err := p.on(ctx).Elements(selRows)
	if err != nil {
		return nil
	}
	visible := make(rod.Elements, 0, len(rows))
	for _, row := range rows {
		if ok, visErr := row.Visible(); visErr == nil && ok {
			visible = append(visible, row)
		}
	}
	return visible
}

// inputByLabel finds an input whose placeholder or aria-label contains label.
func (p *Page) inputByLabel(ctx context.Context, label string) (*rod.Element, error) {
	inputs, err := p.on(ctx).Elements("input")
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	for _, inp := range inputs {
		for _, attr := range []string{"placeholder", "aria-label"} {
			if v, attrErr := inp.Attribute(attr); attrErr == nil && v != nil && strings.Contains(*v, label) {
				return inp, nil
			}
		}
	}
	return nil, fmt.Errorf("input %q: %w", label, navigator.ErrElementNotFound)
}

// elementWithText finds the first tag element whose text contains label.
func (p *Page) elementWithText(ctx context.Context, tag, label string) (*rod.Element, error) {
	els, err := p.on(ctx).Elements(tag)
	if err != nil {
		return nil, fmt.Errorf("%s elements: %w", tag, err)
	}
	for _, el := range els {
		if txt, textErr := el.Text(); textErr == nil && strings.Contains(strings.TrimSpace(txt), label) {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", tag, label, navigator.ErrElementNotFound)
}

func hasClass(el *rod.Element, class string) bool {
	v, err := el.Attribute("class")
	if err != nil || v == nil {
		return false
	}
	return classListContains(*v, class)
}

// classListContains reports whether class appears in a class attribute value.
func classListContains(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}

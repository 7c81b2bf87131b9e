package hotlist

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	baiduBoardURL = "https://top.baidu.com/board?tab=realtime"
	userAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// selectorStrategy 一组定位热搜条目的选择器，页面改版后按顺序降级
type selectorStrategy struct {
	item       string
	title      string
	hot        string
	defaultHot string
}

var baiduStrategies = []selectorStrategy{
	{item: ".category-wrap_iQLoo", title: ".c-single-text-ellipsis", hot: ".hot-index_1Bl1a"},
	{item: ".hot-list_1EDla .content_1YWBm", title: ".c-single-text-ellipsis", hot: ".hot-index_1Bl1a"},
	{item: `div[class*="hot-list"] div[class*="content"]`, title: `div[class*="title"]`, hot: `div[class*="hot-index"]`, defaultHot: "热"},
}

var scriptItemPattern = regexp.MustCompile(`"query":"([^"]+)","url":"([^"]+)".*?"hotScore":(\d+)`)

// staticItems 无法获取热搜时返回的备用数据
var staticItems = []Item{
	{Title: "中国经济", URL: "https://www.baidu.com/s?wd=中国经济", Hot: "9999999"},
	{Title: "国际形势分析", URL: "https://www.baidu.com/s?wd=国际形势分析", Hot: "8888888"},
	{Title: "科技创新", URL: "https://www.baidu.com/s?wd=科技创新", Hot: "7777777"},
	{Title: "人工智能发展", URL: "https://www.baidu.com/s?wd=人工智能发展", Hot: "6666666"},
	{Title: "环境保护", URL: "https://www.baidu.com/s?wd=环境保护", Hot: "5555555"},
	{Title: "教育改革", URL: "https://www.baidu.com/s?wd=教育改革", Hot: "4444444"},
	{Title: "医疗健康", URL: "https://www.baidu.com/s?wd=医疗健康", Hot: "3333333"},
	{Title: "文化传承", URL: "https://www.baidu.com/s?wd=文化传承", Hot: "2222222"},
	{Title: "体育赛事", URL: "https://www.baidu.com/s?wd=体育赛事", Hot: "1111111"},
	{Title: "社会民生", URL: "https://www.baidu.com/s?wd=社会民生", Hot: "999999"},
}

// StaticItems 返回备用热搜列表的副本
func StaticItems() []Item {
	return append([]Item(nil), staticItems...)
}

// parseBaidu 解析百度实时热搜页面，所有策略都失败时返回空列表
func parseBaidu(r io.Reader) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	for _, strategy := range baiduStrategies {
		if items := strategy.collect(doc); len(items) > 0 {
			return items, nil
		}
	}
	return parseScripts(doc), nil
}

func (s selectorStrategy) collect(doc *goquery.Document) []Item {
	var items []Item
	doc.Find(s.item).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(s.title).Text())
		link, _ := sel.Find("a").Attr("href")
		if title == "" || link == "" {
			return
		}

		hot := strings.TrimSpace(sel.Find(s.hot).Text())
		if hot == "" {
			hot = s.defaultHot
		}
		items = append(items, Item{Title: title, URL: link, Hot: hot})
	})
	return items
}

// parseScripts 从页面内嵌的数据脚本中提取热搜
func parseScripts(doc *goquery.Document) []Item {
	var sb strings.Builder
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		sb.WriteString(sel.Text())
	})

	var items []Item
	for _, m := range scriptItemPattern.FindAllStringSubmatch(sb.String(), -1) {
		items = append(items, Item{Title: m[1], URL: m[2], Hot: m[3]})
	}
	return items
}

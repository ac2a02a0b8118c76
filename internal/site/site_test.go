package site

import "testing"

func TestHistoryPageURL(t *testing.T) {
	got := HistoryPageURL(2023, 2)
	want := "https://order.my.rakuten.co.jp/?page=myorder&act=list&display_span=2023&display_month=0&page_num=2"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestOrderDetailURL(t *testing.T) {
	got, err := OrderDetailURL("213310-20230105-0123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://order.my.rakuten.co.jp/?page=myorder&act=detail_view&shop_id=213310&order_number=213310-20230105-0123456789"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	if _, err := OrderDetailURL("no-store"); err == nil {
		t.Fatal("expected error for order number without store id")
	}
}

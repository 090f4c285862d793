package settings

import (
	"fmt"
	"strings"
)

const pixelBase = `<!-- Meta Pixel Code -->
<script>
!function(f,b,e,v,n,t,s)
{if(f.fbq)return;n=f.fbq=function(){n.callMethod?
n.callMethod.apply(n,arguments):n.queue.push(arguments)};
if(!f._fbq)f._fbq=n;n.push=n;n.loaded=!0;n.version='2.0';
n.queue=[];t=b.createElement(e);t.async=!0;
t.src=v;s=b.getElementsByTagName(e)[0];
s.parentNode.insertBefore(t,s)}(window, document,'script',
'https://connect.facebook.net/en_US/fbevents.js');
fbq('init', '%[1]s');
fbq('track', 'PageView');
</script>
<noscript><img height="1" width="1" style="display:none"
src="https://www.facebook.com/tr?id=%[1]s&ev=PageView&noscript=1"
/></noscript>
<!-- End Meta Pixel Code -->`

// HeadSnippet renders the markup the page head should carry. It is empty
// when the pixel is inactive.
func (p PixelSettings) HeadSnippet() string {
	if !p.IsActive {
		return ""
	}
	var parts []string
	if p.FacebookPixelID != "" && pixelIDPattern.MatchString(p.FacebookPixelID) {
		parts = append(parts, fmt.Sprintf(pixelBase, p.FacebookPixelID))
	}
	if code := strings.TrimSpace(p.CustomHeadCode); code != "" {
		parts = append(parts, code)
	}
	return strings.Join(parts, "\n")
}
